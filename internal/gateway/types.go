package gateway

type Card struct {
	Number     string `json:"number"`
	CVC        string `json:"cvc"`
	ExpMonth   string `json:"exp_month"`
	ExpYear    string `json:"exp_year"`
	CardHolder string `json:"card_holder"`
}

type Tokens struct {
	AcceptanceToken       string `json:"acceptance_token"`
	PersonalDataAuthToken string `json:"personal_data_auth_token"`
}

type CreateTransactionInput struct {
	AmountCents   int
	Currency      string
	Reference     string
	CustomerEmail string
	Tokens        Tokens
	CardToken     string
	Installments  int
}

type ProviderTransaction struct {
	ID        string `json:"id"`
	Status    string `json:"status"` // PENDING | APPROVED | DECLINED | ERROR | VOIDED
	Reference string `json:"reference"`
}
