package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/log"
	"github.com/iotaledger/hive.go/runtime/options"
	"github.com/iotaledger/tangle-core/pkg/model"
	"github.com/iotaledger/tangle-core/pkg/snapshot"
)

func main() {
	opts, err := parseFlags()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		flag.Usage()
		os.Exit(1)
	}

	logger := log.NewLogger().NewChildLogger("GenesisSnapshot")

	genesis, err := snapshot.CreateGenesisSnapshot(logger, opts...)
	if err != nil {
		logger.LogErrorf("failed to create genesis snapshot: %s", err)
		os.Exit(1)
	}

	tokenSupply, _ := genesis.TokenSupply()
	logger.LogInfof("created genesis snapshot %s with %d allocations and a token supply of %d", genesis.FilePath, len(genesis.Allocations), tokenSupply)
}

func parseFlags() ([]options.Option[snapshot.GenesisOptions], error) {
	filename := flag.String("filename", "snapshot.bin", "the name of the generated snapshot file")
	allocations := flag.StringSlice("allocation", nil, "a genesis output as <address hex>:<amount>, may be repeated")
	treasury := flag.Uint64("treasury", 0, "the initial treasury balance")

	flag.Parse()

	opts := []options.Option[snapshot.GenesisOptions]{
		snapshot.WithGenesisFilePath(*filename),
		snapshot.WithGenesisTreasury(*treasury),
	}

	for _, allocation := range *allocations {
		addressHex, amountString, found := strings.Cut(allocation, ":")
		if !found {
			return nil, ierrors.Errorf("invalid allocation %q, expected <address>:<amount>", allocation)
		}

		address, err := model.AddressFromHexString(addressHex)
		if err != nil {
			return nil, ierrors.Wrapf(err, "invalid address in allocation %q", allocation)
		}

		amount, err := strconv.ParseUint(amountString, 10, 64)
		if err != nil {
			return nil, ierrors.Wrapf(err, "invalid amount in allocation %q", allocation)
		}

		opts = append(opts, snapshot.WithAllocation(address, amount))
	}

	return opts, nil
}
