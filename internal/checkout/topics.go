package checkout

const (
	TopicCheckoutInitiated    = "checkout.initiated"
	TopicTransactionFinalized = "checkout.transaction.finalized"
	TopicStockReleased        = "checkout.stock.released"
)

// Partition key = transaction_id, supaya semua event 1 transaksi maintain urutan.
func PartitionKey(transactionID string) []byte { return []byte(transactionID) }
