package zerolagsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal zerolag HTTP API client.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults. baseURL includes the API base
// path, e.g. http://127.0.0.1:4000/api.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Signer produces EIP-191 personal signatures for one wallet.
type Signer interface {
	Address() string
	SignMessage(ctx context.Context, message string) (string, error)
}

type FileRef struct {
	FileID   string `json:"fileId"`
	FileName string `json:"fileName"`
	FileType string `json:"fileType,omitempty"`
	FileSize int64  `json:"fileSize"`
}

// Task represents the API task model.
type Task struct {
	ID             string    `json:"id"`
	UserAddress    string    `json:"userAddress"`
	Title          string    `json:"title"`
	Description    string    `json:"description,omitempty"`
	StakedAmount   float64   `json:"stakedAmount"`
	Deadline       time.Time `json:"deadline"`
	Status         string    `json:"status"`
	ProofSubmitted bool      `json:"proofSubmitted"`
	FileData       *FileRef  `json:"fileData,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

type Proof struct {
	ID          string     `json:"id"`
	TaskID      string     `json:"taskId"`
	ProofText   string     `json:"proofText,omitempty"`
	FileData    *FileRef   `json:"fileData,omitempty"`
	Status      string     `json:"status"`
	ReviewNotes string     `json:"reviewNotes,omitempty"`
	SubmittedAt time.Time  `json:"submittedAt"`
	ReviewedAt  *time.Time `json:"reviewedAt,omitempty"`
}

type Stats struct {
	TotalTasks      int        `json:"totalTasks"`
	CompletedTasks  int        `json:"completedTasks"`
	FailedTasks     int        `json:"failedTasks"`
	TotalStaked     float64    `json:"totalStaked"`
	TotalReturned   float64    `json:"totalReturned"`
	TotalBurned     float64    `json:"totalBurned"`
	CurrentStreak   int        `json:"currentStreak"`
	LongestStreak   int        `json:"longestStreak"`
	LastCompletedAt *time.Time `json:"lastCompletedAt"`
}

// Session is the result of a successful wallet sign-in.
type Session struct {
	Success bool `json:"success"`
	User    struct {
		Address       string `json:"address"`
		Authenticated bool   `json:"authenticated"`
	} `json:"user"`
	Token string `json:"token"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Message extracts the envelope message, falling back to the raw body.
func (e *APIError) Message() string {
	var env struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal([]byte(e.Body), &env) == nil && env.Error.Message != "" {
		return env.Error.Message
	}
	return e.Body
}

// Nonce requests the challenge message for address.
func (c *Client) Nonce(ctx context.Context, address string) (string, error) {
	var resp struct {
		Nonce string `json:"nonce"`
	}
	err := c.do(ctx, http.MethodPost, "auth/nonce", map[string]any{"address": address}, &resp)
	return resp.Nonce, err
}

// Verify submits a signed challenge. The returned token is not stored on the
// client; Login does that.
func (c *Client) Verify(ctx context.Context, address, signature string) (Session, error) {
	var resp Session
	err := c.do(ctx, http.MethodPost, "auth/verify", map[string]any{
		"address":   address,
		"signature": signature,
	}, &resp)
	return resp, err
}

// Login runs nonce, sign and verify, and keeps the session token.
func (c *Client) Login(ctx context.Context, signer Signer) (Session, error) {
	if signer == nil {
		return Session{}, errors.New("signer required")
	}
	address := signer.Address()
	msg, err := c.Nonce(ctx, address)
	if err != nil {
		return Session{}, err
	}
	sig, err := signer.SignMessage(ctx, msg)
	if err != nil {
		return Session{}, fmt.Errorf("sign challenge: %w", err)
	}
	sess, err := c.Verify(ctx, address, sig)
	if err != nil {
		return Session{}, err
	}
	c.Token = sess.Token
	return sess, nil
}

// CreateTask stakes a new task for the signed-in wallet.
func (c *Client) CreateTask(ctx context.Context, title, description string, stake float64, deadline time.Time) (Task, error) {
	body := map[string]any{
		"title":        title,
		"description":  description,
		"stakedAmount": stake,
		"deadline":     deadline.UTC().Format(time.RFC3339),
	}
	var resp Task
	err := c.do(ctx, http.MethodPost, "tasks", body, &resp)
	return resp, err
}

func (c *Client) ListTasks(ctx context.Context) ([]Task, error) {
	var resp []Task
	err := c.do(ctx, http.MethodGet, "tasks", nil, &resp)
	return resp, err
}

func (c *Client) SubmitProof(ctx context.Context, taskID, proofText string) (Proof, error) {
	var resp Proof
	endpoint := fmt.Sprintf("tasks/%s/proofs", url.PathEscape(taskID))
	err := c.do(ctx, http.MethodPost, endpoint, map[string]any{"proofText": proofText}, &resp)
	return resp, err
}

// PendingProofs lists proofs awaiting review. Admin only.
func (c *Client) PendingProofs(ctx context.Context) ([]Proof, error) {
	var resp []Proof
	err := c.do(ctx, http.MethodGet, "admin/proofs/pending", nil, &resp)
	return resp, err
}

// ReviewProof approves or rejects a proof. Admin only.
func (c *Client) ReviewProof(ctx context.Context, proofID string, approved bool, notes string) (Proof, error) {
	var resp Proof
	endpoint := fmt.Sprintf("admin/proofs/%s/review", url.PathEscape(proofID))
	err := c.do(ctx, http.MethodPost, endpoint, map[string]any{
		"approved":    approved,
		"reviewNotes": notes,
	}, &resp)
	return resp, err
}

func (c *Client) Stats(ctx context.Context) (Stats, error) {
	var resp Stats
	err := c.do(ctx, http.MethodGet, "stats", nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
