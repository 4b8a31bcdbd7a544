package server

import (
	"zerolag/internal/domain"
)

// Request payloads. Fields are optional at the schema level so missing values
// reach the handlers and get the documented messages.

type NonceRequest struct {
	Address string `json:"address,omitempty" example:"0x71C7656EC7ab88b098defB751B7401B5f6d8976F"`
}

type VerifyRequest struct {
	Address   string `json:"address,omitempty"`
	Signature string `json:"signature,omitempty"`
}

type CreateTaskRequest struct {
	Title        string  `json:"title,omitempty"`
	Description  string  `json:"description,omitempty"`
	StakedAmount float64 `json:"stakedAmount,omitempty"`
	Deadline     string  `json:"deadline,omitempty" example:"2030-01-01T00:00:00Z"`
	FileID       string  `json:"fileId,omitempty"`
}

type SubmitProofRequest struct {
	ProofText string `json:"proofText,omitempty"`
	FileID    string `json:"fileId,omitempty"`
}

type ReviewProofRequest struct {
	Approved    *bool  `json:"approved,omitempty"`
	ReviewNotes string `json:"reviewNotes,omitempty"`
}

type UploadFileRequest struct {
	Name string `json:"name,omitempty"`
	Type string `json:"type,omitempty"`
	Data []byte `json:"data,omitempty"`
}

// Response payloads

type NonceResponse struct {
	Nonce string `json:"nonce"`
}

type VerifiedUser struct {
	Address       string `json:"address"`
	Authenticated bool   `json:"authenticated"`
}

type VerifyResponse struct {
	Success bool         `json:"success"`
	User    VerifiedUser `json:"user"`
	Token   string       `json:"token"`
}

type BalanceResponse struct {
	Address string `json:"address"`
	Wei     string `json:"wei"`
	Eth     string `json:"eth"`
}

func nonNilTasks(items []domain.Task) []domain.Task {
	if items == nil {
		return []domain.Task{}
	}
	return items
}

func nonNilProofs(items []domain.Proof) []domain.Proof {
	if items == nil {
		return []domain.Proof{}
	}
	return items
}

func nonNilEvents(items []domain.Event) []domain.Event {
	if items == nil {
		return []domain.Event{}
	}
	return items
}
