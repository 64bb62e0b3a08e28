package restapi

import (
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/kvstore"
	"github.com/iotaledger/hive.go/lo"
	"github.com/iotaledger/hive.go/runtime/options"
	"github.com/iotaledger/inx-app/pkg/httpserver"
	"github.com/iotaledger/iota.go/v4/hexutil"
	"github.com/iotaledger/tangle-core/pkg/ledger/utxo"
	"github.com/iotaledger/tangle-core/pkg/model"
	"github.com/iotaledger/tangle-core/pkg/protocol"
	"github.com/iotaledger/tangle-core/pkg/retainer"
	"github.com/iotaledger/tangle-core/pkg/tangle"
)

const (
	// RouteInfo is the route for getting the node info.
	// GET returns the node info.
	RouteInfo = "/info"

	// RouteBlocks is the route for submitting blocks.
	// POST attaches a serialized block to the tangle and returns its blockID.
	RouteBlocks = "/blocks"

	// RouteBlock is the route for getting a block by its blockID.
	RouteBlock = "/blocks/:" + ParameterBlockID

	// RouteBlockMetadata is the route for getting block metadata by its blockID.
	RouteBlockMetadata = "/blocks/:" + ParameterBlockID + "/metadata"

	// RouteBlockChildren is the route for getting block IDs of the children of a block, identified by its blockID.
	RouteBlockChildren = "/blocks/:" + ParameterBlockID + "/children"

	// RouteMilestoneByIndex is the route for getting a milestone by its milestoneIndex.
	RouteMilestoneByIndex = "/milestones/by-index/:" + ParameterMilestoneIndex

	// RouteMilestoneByIndexUTXOChanges is the route for getting all UTXO changes of a milestone by its milestoneIndex.
	// GET returns the output IDs of all UTXO changes.
	RouteMilestoneByIndexUTXOChanges = "/milestones/by-index/:" + ParameterMilestoneIndex + "/utxo-changes"

	// RouteAddressBalance is the route for getting the balance of an address.
	RouteAddressBalance = "/addresses/:" + ParameterAddress + "/balance"

	// RouteOutput is the route for getting an output by its outputID (transactionHash + outputIndex).
	RouteOutput = "/outputs/:" + ParameterOutputID

	// RouteTransactionMetadata is the route for getting the inclusion state of a confirmed transaction.
	RouteTransactionMetadata = "/transactions/:" + ParameterTransactionID + "/metadata"
)

// Server answers queries about the tangle and the ledger.
type Server struct {
	tangle   *tangle.Tangle
	ledger   *utxo.Manager
	protocol *protocol.Protocol
	retainer *retainer.Retainer

	optsName        string
	optsVersion     string
	optsTokenSupply uint64
	optsMaxResults  int
}

func NewServer(tangle *tangle.Tangle, ledger *utxo.Manager, protocol *protocol.Protocol, opts ...options.Option[Server]) *Server {
	return options.Apply(&Server{
		tangle:         tangle,
		ledger:         ledger,
		protocol:       protocol,
		optsName:       "tangle-core",
		optsMaxResults: 1000,
	}, opts)
}

// RegisterRoutes adds the query routes to the given group.
func (s *Server) RegisterRoutes(routeGroup *echo.Group) {
	routeGroup.GET(RouteInfo, func(c echo.Context) error {
		resp, err := s.info()
		if err != nil {
			return err
		}

		return httpserver.JSONResponse(c, http.StatusOK, resp)
	})

	routeGroup.POST(RouteBlocks, func(c echo.Context) error {
		resp, err := s.submitBlock(c)
		if err != nil {
			return err
		}
		c.Response().Header().Set(echo.HeaderLocation, resp.BlockID)

		return httpserver.JSONResponse(c, http.StatusCreated, resp)
	})

	routeGroup.GET(RouteBlock, func(c echo.Context) error {
		resp, err := s.blockByID(c)
		if err != nil {
			return err
		}

		return httpserver.JSONResponse(c, http.StatusOK, resp)
	})

	routeGroup.GET(RouteBlockMetadata, func(c echo.Context) error {
		resp, err := s.blockMetadataByID(c)
		if err != nil {
			return err
		}

		return httpserver.JSONResponse(c, http.StatusOK, resp)
	})

	routeGroup.GET(RouteBlockChildren, func(c echo.Context) error {
		resp, err := s.childrenIDsByID(c)
		if err != nil {
			return err
		}

		return httpserver.JSONResponse(c, http.StatusOK, resp)
	})

	routeGroup.GET(RouteMilestoneByIndex, func(c echo.Context) error {
		resp, err := s.milestoneByIndex(c)
		if err != nil {
			return err
		}

		return httpserver.JSONResponse(c, http.StatusOK, resp)
	})

	routeGroup.GET(RouteMilestoneByIndexUTXOChanges, func(c echo.Context) error {
		resp, err := s.milestoneUTXOChanges(c)
		if err != nil {
			return err
		}

		return httpserver.JSONResponse(c, http.StatusOK, resp)
	})

	routeGroup.GET(RouteAddressBalance, func(c echo.Context) error {
		resp, err := s.addressBalance(c)
		if err != nil {
			return err
		}

		return httpserver.JSONResponse(c, http.StatusOK, resp)
	})

	routeGroup.GET(RouteOutput, func(c echo.Context) error {
		resp, err := s.outputByID(c)
		if err != nil {
			return err
		}

		return httpserver.JSONResponse(c, http.StatusOK, resp)
	})

	routeGroup.GET(RouteTransactionMetadata, func(c echo.Context) error {
		resp, err := s.transactionMetadata(c)
		if err != nil {
			return err
		}

		return httpserver.JSONResponse(c, http.StatusOK, resp)
	})
}

func (s *Server) info() (*InfoResponse, error) {
	ledgerIndex, err := s.ledger.ReadLedgerIndex()
	if err != nil {
		return nil, ierrors.Wrapf(echo.ErrInternalServerError, "failed to read ledger index: %s", err)
	}

	health := s.protocol.Health()

	return &InfoResponse{
		Name:    s.optsName,
		Version: s.optsVersion,
		Status: &NodeStatus{
			IsHealthy:               health == protocol.HealthHealthy,
			Health:                  health.String(),
			LatestMilestoneIndex:    uint32(s.tangle.LatestMilestoneIndex()),
			ConfirmedMilestoneIndex: uint32(s.tangle.ConfirmedMilestoneIndex()),
			LedgerIndex:             uint32(ledgerIndex),
			PruningIndex:            uint32(s.tangle.PruningIndex()),
			SnapshotIndex:           uint32(s.tangle.SnapshotIndex()),
		},
		TokenSupply: strconv.FormatUint(s.optsTokenSupply, 10),
		Tips:        s.tangle.TipCount(),
	}, nil
}

func (s *Server) loadBlock(blockID model.BlockID) (*model.Block, error) {
	block, exists, err := s.tangle.Block(blockID)
	if err != nil {
		return nil, ierrors.Wrapf(echo.ErrInternalServerError, "failed to load block %s: %s", blockID, err)
	}
	if !exists {
		return nil, ierrors.Wrapf(echo.ErrNotFound, "block not found: %s", blockID)
	}

	return block, nil
}

func (s *Server) submitBlock(c echo.Context) (*BlockCreatedResponse, error) {
	var data []byte

	switch mimeType := c.Request().Header.Get(echo.HeaderContentType); mimeType {
	case echo.MIMEOctetStream:
		bytes, err := io.ReadAll(c.Request().Body)
		if err != nil {
			return nil, ierrors.Wrapf(httpserver.ErrInvalidParameter, "failed to read block: %s", err)
		}
		data = bytes

	default:
		request := &SubmitBlockRequest{}
		if err := c.Bind(request); err != nil {
			return nil, ierrors.Wrapf(httpserver.ErrInvalidParameter, "invalid request, error: %s", err)
		}

		bytes, err := hexutil.DecodeHex(request.Raw)
		if err != nil {
			return nil, ierrors.Wrapf(httpserver.ErrInvalidParameter, "invalid block hex: %s", err)
		}
		data = bytes
	}

	block, err := model.BlockFromBytes(data)
	if err != nil {
		return nil, ierrors.Wrapf(httpserver.ErrInvalidParameter, "invalid block: %s", err)
	}

	if _, err := s.tangle.Insert(block); err != nil {
		return nil, ierrors.Wrapf(echo.ErrInternalServerError, "failed to attach block %s: %s", block.ID(), err)
	}

	solid, err := s.tangle.CheckSolidity(block.ID())
	if err != nil {
		return nil, ierrors.Wrapf(echo.ErrInternalServerError, "failed to solidify block %s: %s", block.ID(), err)
	}

	return &BlockCreatedResponse{
		BlockID: block.ID().ToHex(),
		Solid:   solid,
	}, nil
}

func (s *Server) blockByID(c echo.Context) (*BlockResponse, error) {
	blockID, err := ParseBlockIDParam(c)
	if err != nil {
		return nil, err
	}

	block, err := s.loadBlock(blockID)
	if err != nil {
		return nil, err
	}

	resp := &BlockResponse{
		BlockID: blockID.ToHex(),
		Parents: block.Parents().ToHex(),
		Nonce:   strconv.FormatUint(block.Nonce(), 10),
		Raw:     hexutil.EncodeHex(block.Data()),
	}

	if payload := block.Payload(); payload != nil {
		resp.PayloadType = payload.PayloadType().String()
	}
	if tx, isTransaction := block.Transaction(); isTransaction {
		resp.TransactionID = tx.ID().ToHex()
	}
	if milestonePayload, isMilestone := block.Milestone(); isMilestone {
		resp.MilestoneIndex = uint32(milestonePayload.Index)
	}

	return resp, nil
}

func (s *Server) blockMetadataByID(c echo.Context) (*BlockMetadataResponse, error) {
	blockID, err := ParseBlockIDParam(c)
	if err != nil {
		return nil, err
	}

	block, err := s.loadBlock(blockID)
	if err != nil {
		return nil, err
	}

	metadata, exists, err := s.tangle.Metadata(blockID)
	if err != nil {
		return nil, ierrors.Wrapf(echo.ErrInternalServerError, "failed to load block metadata %s: %s", blockID, err)
	}
	if !exists {
		return nil, ierrors.Wrapf(echo.ErrNotFound, "block metadata not found: %s", blockID)
	}

	resp := &BlockMetadataResponse{
		BlockID:         blockID.ToHex(),
		Parents:         block.Parents().ToHex(),
		Solid:           metadata.IsSolid(),
		SolidEntryPoint: s.tangle.IsSolidEntryPoint(blockID),
	}

	if metadata.IsMilestone() {
		resp.MilestoneIndex = uint32(metadata.MilestoneIndex())
	}

	if metadata.IsConfirmed() {
		resp.ReferencedByMilestoneIndex = uint32(metadata.ConfirmationIndex())
		resp.LedgerInclusionState = metadata.InclusionState().String()
		if metadata.Conflict() != model.ConflictNone {
			resp.ConflictReason = metadata.Conflict().String()
		}
	}

	return resp, nil
}

func (s *Server) childrenIDsByID(c echo.Context) (*ChildrenResponse, error) {
	blockID, err := ParseBlockIDParam(c)
	if err != nil {
		return nil, err
	}

	exists, err := s.tangle.BlockExists(blockID)
	if err != nil {
		return nil, ierrors.Wrapf(echo.ErrInternalServerError, "failed to load block %s: %s", blockID, err)
	}
	if !exists && !s.tangle.IsSolidEntryPoint(blockID) {
		return nil, ierrors.Wrapf(echo.ErrNotFound, "block not found: %s", blockID)
	}

	children, err := s.tangle.Children(blockID)
	if err != nil {
		return nil, ierrors.Wrapf(echo.ErrInternalServerError, "failed to load children of block %s: %s", blockID, err)
	}
	if len(children) > s.optsMaxResults {
		children = children[:s.optsMaxResults]
	}

	return &ChildrenResponse{
		BlockID:    blockID.ToHex(),
		MaxResults: uint32(s.optsMaxResults),
		Count:      uint32(len(children)),
		Children:   children.ToHex(),
	}, nil
}

func (s *Server) milestoneByIndex(c echo.Context) (*MilestoneResponse, error) {
	index, err := ParseMilestoneIndexParam(c)
	if err != nil {
		return nil, err
	}

	milestonePayload, record, err := s.tangle.MilestonePayload(index)
	if err != nil {
		if ierrors.Is(err, tangle.ErrMilestoneNotFound) || ierrors.Is(err, tangle.ErrBlockNotFound) {
			return nil, ierrors.Wrapf(echo.ErrNotFound, "milestone not found: %d", index)
		}

		return nil, ierrors.Wrapf(echo.ErrInternalServerError, "failed to load milestone %d: %s", index, err)
	}

	resp := &MilestoneResponse{
		Index:               uint32(record.Index),
		MilestoneID:         record.MilestoneID.ToHex(),
		BlockID:             record.BlockID.ToHex(),
		Timestamp:           record.Timestamp,
		PreviousMilestoneID: milestonePayload.PreviousMilestoneID.ToHex(),
		Parents:             milestonePayload.Parents.ToHex(),
		InclusionMerkleRoot: milestonePayload.InclusionMerkleRoot.ToHex(),
		AppliedMerkleRoot:   milestonePayload.AppliedMerkleRoot.ToHex(),
		Signatures:          len(milestonePayload.Signatures),
	}

	if receipt := milestonePayload.Receipt; receipt != nil {
		resp.Receipt = &ReceiptResponse{
			MigratedFunds: len(receipt.Funds),
			Treasury:      strconv.FormatUint(receipt.TreasuryAmount, 10),
		}
	}

	return resp, nil
}

func (s *Server) milestoneUTXOChanges(c echo.Context) (*UTXOChangesResponse, error) {
	index, err := ParseMilestoneIndexParam(c)
	if err != nil {
		return nil, err
	}

	diff, err := s.ledger.MilestoneDiff(index)
	if err != nil {
		if ierrors.Is(err, kvstore.ErrKeyNotFound) {
			return nil, ierrors.Wrapf(echo.ErrNotFound, "no ledger changes found for milestone %d", index)
		}

		return nil, ierrors.Wrapf(echo.ErrInternalServerError, "failed to load ledger changes of milestone %d: %s", index, err)
	}

	return &UTXOChangesResponse{
		Index: uint32(index),
		CreatedOutputs: lo.Map(diff.Outputs, func(output *utxo.Output) string {
			return output.OutputID().ToHex()
		}),
		ConsumedOutputs: lo.Map(diff.Spents, func(spent *utxo.Spent) string {
			return spent.OutputID().ToHex()
		}),
	}, nil
}

func (s *Server) addressBalance(c echo.Context) (*AddressBalanceResponse, error) {
	address, err := ParseAddressParam(c)
	if err != nil {
		return nil, err
	}

	s.ledger.ReadLockLedger()
	defer s.ledger.ReadUnlockLedger()

	ledgerIndex, err := s.ledger.ReadLedgerIndexWithoutLocking()
	if err != nil {
		return nil, ierrors.Wrapf(echo.ErrInternalServerError, "failed to read ledger index: %s", err)
	}

	balance, err := s.ledger.AddressBalanceWithoutLocking(address)
	if err != nil {
		return nil, ierrors.Wrapf(echo.ErrInternalServerError, "failed to read balance of %s: %s", address, err)
	}

	return &AddressBalanceResponse{
		Address:     address.ToHex(),
		Balance:     strconv.FormatUint(balance, 10),
		LedgerIndex: uint32(ledgerIndex),
	}, nil
}

func (s *Server) outputByID(c echo.Context) (*OutputResponse, error) {
	outputID, err := ParseOutputIDParam(c)
	if err != nil {
		return nil, err
	}

	s.ledger.ReadLockLedger()
	defer s.ledger.ReadUnlockLedger()

	ledgerIndex, err := s.ledger.ReadLedgerIndexWithoutLocking()
	if err != nil {
		return nil, ierrors.Wrapf(echo.ErrInternalServerError, "failed to read ledger index: %s", err)
	}

	unspent, err := s.ledger.IsOutputIDUnspentWithoutLocking(outputID)
	if err != nil {
		return nil, ierrors.Wrapf(echo.ErrInternalServerError, "failed to check output %s: %s", outputID, err)
	}

	output, err := s.ledger.ReadOutputByOutputIDWithoutLocking(outputID)
	if err != nil {
		if ierrors.Is(err, kvstore.ErrKeyNotFound) {
			return nil, ierrors.Wrapf(echo.ErrNotFound, "output not found: %s", outputID)
		}

		return nil, ierrors.Wrapf(echo.ErrInternalServerError, "failed to load output %s: %s", outputID, err)
	}

	metadata := &OutputMetadataResponse{
		BlockID:                  output.BlockID().ToHex(),
		TransactionID:            outputID.TransactionID().ToHex(),
		OutputIndex:              outputID.Index(),
		MilestoneIndexBooked:     uint32(output.MilestoneIndexBooked()),
		MilestoneTimestampBooked: output.MilestoneTimestampBooked(),
		LedgerIndex:              uint32(ledgerIndex),
	}

	if !unspent {
		spent, err := s.ledger.ReadSpentForOutputIDWithoutLocking(outputID)
		if err != nil {
			return nil, ierrors.Wrapf(echo.ErrInternalServerError, "failed to load spent output %s: %s", outputID, err)
		}

		metadata.Spent = true
		metadata.MilestoneIndexSpent = uint32(spent.MilestoneIndexSpent())
		metadata.MilestoneTimestampSpent = spent.MilestoneTimestampSpent()
		metadata.TransactionIDSpent = spent.TransactionIDSpent().ToHex()
	}

	return &OutputResponse{
		Metadata: metadata,
		Output: &OutputContent{
			Address: output.Address().ToHex(),
			Amount:  strconv.FormatUint(output.Amount(), 10),
		},
	}, nil
}

func (s *Server) transactionMetadata(c echo.Context) (*TransactionMetadataResponse, error) {
	if s.retainer == nil {
		return nil, ierrors.Wrap(echo.ErrServiceUnavailable, "transaction retainer is disabled")
	}

	transactionID, err := ParseTransactionIDParam(c)
	if err != nil {
		return nil, err
	}

	txMeta, err := s.retainer.TransactionMetadata(transactionID)
	if err != nil {
		if ierrors.Is(err, retainer.ErrEntryNotFound) {
			return nil, ierrors.Wrapf(echo.ErrNotFound, "transaction not found: %s", transactionID)
		}

		return nil, ierrors.Wrapf(echo.ErrInternalServerError, "failed to load transaction metadata %s: %s", transactionID, err)
	}

	resp := &TransactionMetadataResponse{
		TransactionID:        hexutil.EncodeHex(txMeta.TransactionID),
		BlockID:              hexutil.EncodeHex(txMeta.BlockID),
		MilestoneIndex:       txMeta.MilestoneIndex,
		LedgerInclusionState: model.InclusionState(txMeta.InclusionState).String(),
	}
	if conflict := model.ConflictReason(txMeta.ConflictReason); conflict != model.ConflictNone {
		resp.ConflictReason = conflict.String()
	}

	return resp, nil
}
