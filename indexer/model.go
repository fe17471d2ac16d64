package indexer

// sqlite models

type Height struct {
	Id     uint64 `gorm:"primary_key" json:"id"`
	Height uint64 `json:"height"`
}

type Proposal struct {
	Id          uint64 `gorm:"primary_key" json:"id"`
	Kind        string `gorm:"index" json:"kind"`
	Token       uint64 `json:"token"`
	Account     string `gorm:"index" json:"account"`
	Amount      string `json:"amount"`
	Foreign     string `json:"foreign"`
	Deadline    uint64 `json:"deadline"`
	NewHeight   uint64 `json:"new_height"`
	CloseHeight uint64 `json:"close_height"`
	Status      string `gorm:"index" json:"status"`
	Votes       uint64 `json:"votes"`
	Turnout     uint64 `json:"turnout"`
	Executed    bool   `json:"executed"`
	ExecError   string `json:"exec_error"`
}

type ProposalVote struct {
	Id             uint64 `gorm:"primary_key" json:"id"`
	Proposal       uint64 `gorm:"index" json:"proposal"`
	ValidatorIndex uint64 `json:"validator_index"`
	VoterAddress   string `gorm:"index" json:"voter_address"`
	Assent         bool   `json:"assent"`
	Height         uint64 `json:"height"`
}
