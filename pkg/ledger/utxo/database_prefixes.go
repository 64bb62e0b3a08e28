package utxo

import "github.com/iotaledger/tangle-core/pkg/storage/database"

const (
	StoreKeyPrefixLedgerMilestoneIndex = database.StorePrefixLedgerIndex

	// StoreKeyPrefixOutput defines the prefix for Output storage.
	StoreKeyPrefixOutput = database.StorePrefixOutput

	// StoreKeyPrefixOutputSpent defines the prefix for Spent storage.
	StoreKeyPrefixOutputSpent   = database.StorePrefixOutputSpent
	StoreKeyPrefixOutputUnspent = database.StorePrefixOutputUnspent

	// StoreKeyPrefixMilestoneDiffs defines the prefix for milestone diffs.
	StoreKeyPrefixMilestoneDiffs = database.StorePrefixMilestoneDiffs

	StoreKeyPrefixBalances  = database.StorePrefixBalances
	StoreKeyPrefixTreasury  = database.StorePrefixTreasury
	StoreKeyPrefixStateTree = database.StorePrefixStateTree
)

/*
   LedgerState Database

   Milestone:
   ===============
   Key:
       StoreKeyPrefixLedgerMilestoneIndex
                1 byte

   Value:
       model.MilestoneIndex
          4 bytes

   Output:
   =======
   Key:
       StoreKeyPrefixOutput + model.OutputID
             1 byte         +     34 bytes

   Value:
       BlockID   + MilestoneIndexBooked + MilestoneTimestampBooked + model.Output
       32 bytes  +       4 bytes        +         4 bytes          +   40 bytes

   Spent Output:
   ================
   Key:
       StoreKeyPrefixOutputSpent + model.OutputID
            1 byte               +     34 bytes

   Value:
       TransactionIDSpent + MilestoneIndexSpent + MilestoneTimestampSpent
           32 bytes       +       4 bytes       +         4 bytes

   Unspent Output:
   ===============
   Key:
       StoreKeyPrefixOutputUnspent + model.OutputID
             1 byte                +     34 bytes

   Value:
       Empty

   Milestone diffs:
   ================
   Key:
       StoreKeyPrefixMilestoneDiffs + model.MilestoneIndex (big endian)
                 1 byte             +     4 bytes

   Value:
       OutputCount  +  OutputCount  *  model.OutputID   + SpentCount +  SpentCount *    model.OutputID + HasTreasuryMutation + [PreviousTreasury + NewTreasury]
         4 bytes    +  (OutputCount *    34 bytes)      +   4 bytes  + (SpentCount *       34 bytes)   +       1 byte        + [     8 bytes     +   8 bytes  ]

   Balances:
   =========
   Key:
       StoreKeyPrefixBalances + model.Address
             1 byte           +    32 bytes

   Value:
       uint64

   Treasury:
   =========
   Key:
       StoreKeyPrefixTreasury
             1 byte

   Value:
       uint64
*/
