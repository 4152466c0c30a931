package domain

type Song struct {
	ID             string `json:"id" yaml:"id"`
	Title          string `json:"title" yaml:"title"`
	Artist         string `json:"artist" yaml:"artist"`
	Description    string `json:"description" yaml:"description"`
	RequiredTokens int64  `json:"requiredTokens" yaml:"requiredTokens"`
	Tier           int    `json:"tier" yaml:"tier"`
	Genre          string `json:"genre" yaml:"genre"`
	Duration       string `json:"duration" yaml:"duration"`
	ContentURL     string `json:"contentUrl" yaml:"contentUrl"`
}

// Artist owns the catalog and receives every transfer.
type Artist struct {
	Address       string `json:"address" yaml:"address"`
	Name          string `json:"name" yaml:"name"`
	SecretContent string `json:"secretContent,omitempty" yaml:"secretContent"`
}

// Transfer is a recorded fan to artist payment used by the proof flow.
type Transfer struct {
	FanAddress    string `json:"fanAddress" yaml:"fanAddress"`
	ArtistAddress string `json:"artistAddress" yaml:"artistAddress"`
	Amount        int64  `json:"amount" yaml:"amount"`
	Timestamp     string `json:"timestamp" yaml:"timestamp"`
	TxHash        string `json:"txHash" yaml:"txHash"`
}
