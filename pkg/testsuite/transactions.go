package testsuite

import (
	"fmt"

	"github.com/stretchr/testify/require"

	"github.com/iotaledger/hive.go/crypto/ed25519"
	"github.com/iotaledger/tangle-core/pkg/model"
)

// OutputSpec describes an output of a transaction built by the suite.
type OutputSpec struct {
	Alias  string
	Wallet string
	Amount uint64
}

// Transaction returns the transaction registered with the given alias.
func (t *TestSuite) Transaction(alias string) *model.Transaction {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	tx, exists := t.transactions.Get(alias)
	if !exists {
		panic(fmt.Sprintf("transaction %s not registered", alias))
	}

	return tx
}

// OutputID returns the id of the output registered with the given alias.
func (t *TestSuite) OutputID(alias string) model.OutputID {
	return t.output(alias).outputID
}

func (t *TestSuite) output(alias string) *aliasedOutput {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	output, exists := t.outputs.Get(alias)
	if !exists {
		panic(fmt.Sprintf("output %s not registered", alias))
	}

	return output
}

// CreateTransaction spends the outputs with the given aliases into the given outputs,
// signed by the owners of the inputs.
func (t *TestSuite) CreateTransaction(alias string, inputAliases []string, outputs ...*OutputSpec) *model.Transaction {
	signers := make([]ed25519.PrivateKey, 0, len(inputAliases))
	for _, inputAlias := range inputAliases {
		signers = append(signers, t.Wallet(t.output(inputAlias).owner))
	}

	return t.CreateTransactionWithSigners(alias, inputAliases, signers, outputs...)
}

// CreateTransactionWithSigners builds a transaction with explicitly chosen signing keys.
func (t *TestSuite) CreateTransactionWithSigners(alias string, inputAliases []string, signers []ed25519.PrivateKey, outputs ...*OutputSpec) *model.Transaction {
	essence := &model.TransactionEssence{
		Inputs:  make(model.OutputIDs, 0, len(inputAliases)),
		Outputs: make(model.Outputs, 0, len(outputs)),
	}
	for _, inputAlias := range inputAliases {
		essence.Inputs = append(essence.Inputs, t.OutputID(inputAlias))
	}
	for _, output := range outputs {
		essence.Outputs = append(essence.Outputs, &model.Output{
			Address: t.Address(output.Wallet),
			Amount:  output.Amount,
		})
	}

	tx, err := model.NewTransaction(essence, signers...)
	require.NoError(t.Testing, err)

	t.mutex.Lock()
	defer t.mutex.Unlock()

	if _, exists := t.transactions.Get(alias); exists {
		panic(fmt.Sprintf("transaction alias %s already registered", alias))
	}
	t.transactions.Set(alias, tx)

	for i, output := range outputs {
		if output.Alias == "" {
			continue
		}
		t.outputs.Set(output.Alias, &aliasedOutput{
			outputID: tx.OutputID(uint16(i)),
			owner:    output.Wallet,
			amount:   output.Amount,
		})
	}

	return tx
}
