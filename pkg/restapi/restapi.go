package restapi

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/inx-app/pkg/httpserver"
	"github.com/iotaledger/tangle-core/pkg/model"
)

const (
	// ParameterBlockID is used to identify a block by its ID.
	ParameterBlockID = "blockID"

	// ParameterTransactionID is used to identify a transaction by its ID.
	ParameterTransactionID = "transactionID"

	// ParameterOutputID is used to identify an output by its ID.
	ParameterOutputID = "outputID"

	// ParameterAddress is used to identify an address.
	ParameterAddress = "address"

	// ParameterMilestoneIndex is used to identify a milestone by index.
	ParameterMilestoneIndex = "index"
)

func ParseBlockIDParam(c echo.Context) (model.BlockID, error) {
	blockID, err := model.BlockIDFromHexString(c.Param(ParameterBlockID))
	if err != nil {
		return model.EmptyBlockID, ierrors.Wrapf(httpserver.ErrInvalidParameter, "invalid block ID: %s, error: %s", c.Param(ParameterBlockID), err)
	}

	return blockID, nil
}

func ParseTransactionIDParam(c echo.Context) (model.TransactionID, error) {
	transactionID, err := model.TransactionIDFromHexString(c.Param(ParameterTransactionID))
	if err != nil {
		return model.EmptyTransactionID, ierrors.Wrapf(httpserver.ErrInvalidParameter, "invalid transaction ID: %s, error: %s", c.Param(ParameterTransactionID), err)
	}

	return transactionID, nil
}

func ParseOutputIDParam(c echo.Context) (model.OutputID, error) {
	outputID, err := model.OutputIDFromHexString(c.Param(ParameterOutputID))
	if err != nil {
		return model.OutputID{}, ierrors.Wrapf(httpserver.ErrInvalidParameter, "invalid output ID: %s, error: %s", c.Param(ParameterOutputID), err)
	}

	return outputID, nil
}

func ParseAddressParam(c echo.Context) (model.Address, error) {
	address, err := model.AddressFromHexString(c.Param(ParameterAddress))
	if err != nil {
		return model.Address{}, ierrors.Wrapf(httpserver.ErrInvalidParameter, "invalid address: %s, error: %s", c.Param(ParameterAddress), err)
	}

	return address, nil
}

func ParseMilestoneIndexParam(c echo.Context) (model.MilestoneIndex, error) {
	index, err := strconv.ParseUint(c.Param(ParameterMilestoneIndex), 10, 32)
	if err != nil {
		return 0, ierrors.Wrapf(httpserver.ErrInvalidParameter, "invalid milestone index: %s, error: %s", c.Param(ParameterMilestoneIndex), err)
	}

	return model.MilestoneIndex(index), nil
}
