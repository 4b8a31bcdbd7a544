package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"zerolag/internal/auth"
	"zerolag/internal/chain"
	"zerolag/internal/domain"
	"zerolag/internal/files"
	"zerolag/internal/kv"
	"zerolag/internal/ledger"
)

// Config for the HTTP API handler.
type Config struct {
	Auth   *auth.Authenticator
	Ledger *ledger.Ledger
	Files  *files.Store
	// MaxUploadBytes bounds an uploaded file before base64 encoding.
	// Zero means defaultMaxUploadBytes.
	MaxUploadBytes int64
	// Chain is optional; balance lookups and on-chain settlement need it.
	Chain       chain.Staking
	BasePath    string
	Session     AuthConfig
	CORSOrigins []string
	Logger      *slog.Logger
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"nonce_not_found"`
	Message string         `json:"message" example:"No nonce found"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the zerolag API.
func New(cfg Config) (http.Handler, error) {
	if cfg.Auth == nil || cfg.Ledger == nil || cfg.Files == nil {
		return nil, errors.New("server: authenticator, ledger and file store are required")
	}
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/api"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Session.Logger == nil {
		cfg.Session.Logger = cfg.Logger
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(requestLogger(cfg.Logger))
	router.Use(corsMiddleware(cfg.CORSOrigins))
	router.Use(newAuthMiddleware(basePath, cfg.Session))
	hcfg := huma.DefaultConfig("Zerolag API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerWalletAuth(group, cfg)
	registerTasks(group, cfg)
	registerProofs(group, cfg)
	registerStats(group, cfg)
	registerFiles(group, cfg)
	registerBalance(group, cfg)
	registerAdmin(group, cfg)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var se huma.StatusError
	if errors.As(err, &se) {
		return se
	}
	var fe auth.ForbiddenError
	if errors.As(err, &fe) {
		return newAPIError(http.StatusForbidden, "forbidden", err.Error(), map[string]any{"permission": fe.Permission})
	}
	msg := err.Error()
	switch {
	case errors.Is(err, ledger.ErrValidation),
		errors.Is(err, auth.ErrInvalidInput),
		errors.Is(err, files.ErrEmpty),
		errors.Is(err, chain.ErrInvalidAddress):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	case errors.Is(err, auth.ErrChallengeNotFound):
		return newAPIError(http.StatusBadRequest, "nonce_not_found", msg, nil)
	case errors.Is(err, auth.ErrChallengeExpired):
		return newAPIError(http.StatusBadRequest, "nonce_expired", msg, nil)
	case errors.Is(err, auth.ErrSignatureMismatch):
		return newAPIError(http.StatusUnauthorized, "signature_mismatch", msg, nil)
	case errors.Is(err, files.ErrNoData):
		return newAPIError(http.StatusNotFound, "not_found", msg, nil)
	case errors.Is(err, kv.ErrNotFound):
		return newAPIError(http.StatusNotFound, "not_found", msg, nil)
	case errors.Is(err, ledger.ErrAlreadyPending):
		return newAPIError(http.StatusConflict, "proof_pending", msg, nil)
	case errors.Is(err, ledger.ErrAlreadyReviewed):
		return newAPIError(http.StatusConflict, "proof_reviewed", msg, nil)
	case errors.Is(err, ledger.ErrTaskClosed):
		return newAPIError(http.StatusConflict, "task_closed", msg, nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			level := slog.LevelInfo
			if status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			logger.LogAttrs(r.Context(), level, "request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", status),
				slog.Duration("duration", time.Since(start)),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}

func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	allowAll := false
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" || !(allowAll || allowed[origin]) {
				next.ServeHTTP(w, r)
				return
			}
			if allowAll {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			} else {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
			}
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var (
		once sync.Once
		spec []byte
	)
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		once.Do(func() {
			oas := api.OpenAPI()
			ensureDefaultErrorResponses(oas)
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		})
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Paths == nil {
		return
	}
	for _, item := range oas.Paths {
		for _, op := range []*huma.Operation{item.Get, item.Post} {
			if op == nil {
				continue
			}
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = &huma.Response{
				Description: "Error",
				Content: map[string]*huma.MediaType{
					"application/json": {
						Schema: &huma.Schema{Ref: "#/components/schemas/ApiError"},
					},
				},
			}
		}
	}
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	security := []map[string][]string{{"bearerAuth": {}}}
	oas.Security = security
	public := publicPaths(basePath)
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{item.Get, item.Post} {
			if op == nil {
				continue
			}
			if public[route] {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Zerolag API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Sign in with POST /auth/nonce and /auth/verify, then send Authorization: Bearer &lt;token&gt;.
    </p>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerWalletAuth(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID: "auth-nonce",
		Method:      http.MethodPost,
		Path:        "/auth/nonce",
		Summary:     "Issue a sign-in challenge for a wallet address",
		Errors:      []int{http.StatusBadRequest, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Body NonceRequest `json:"body" required:"false"`
	}) (*struct {
		Body NonceResponse `json:"body"`
	}, error) {
		msg, err := cfg.Auth.IssueChallenge(ctx, input.Body.Address)
		if errors.Is(err, auth.ErrInvalidInput) {
			return nil, newAPIError(http.StatusBadRequest, "address_missing", "Address missing", nil)
		}
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body NonceResponse `json:"body"`
		}{Body: NonceResponse{Nonce: msg}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "auth-verify",
		Method:      http.MethodPost,
		Path:        "/auth/verify",
		Summary:     "Verify a signed challenge and start a session",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Body VerifyRequest `json:"body" required:"false"`
	}) (*struct {
		Body VerifyResponse `json:"body"`
	}, error) {
		res, err := cfg.Auth.Verify(ctx, input.Body.Address, input.Body.Signature)
		if err != nil {
			return nil, verifyError(cfg.Logger, err)
		}
		token, err := signSessionToken(cfg.Session, res.Identity)
		if err != nil {
			return nil, verifyError(cfg.Logger, err)
		}
		return &struct {
			Body VerifyResponse `json:"body"`
		}{Body: VerifyResponse{
			Success: true,
			User:    VerifiedUser{Address: res.Identity, Authenticated: res.Verified},
			Token:   token,
		}}, nil
	})
}

// verifyError maps verification failures onto the messages wallet clients
// expect.
func verifyError(logger *slog.Logger, err error) huma.StatusError {
	switch {
	case errors.Is(err, auth.ErrInvalidInput):
		return newAPIError(http.StatusBadRequest, "missing_data", "Missing data", nil)
	case errors.Is(err, auth.ErrChallengeNotFound):
		return newAPIError(http.StatusBadRequest, "nonce_not_found", "No nonce found", nil)
	case errors.Is(err, auth.ErrChallengeExpired):
		return newAPIError(http.StatusBadRequest, "nonce_expired", "Nonce expired", nil)
	case errors.Is(err, auth.ErrSignatureMismatch):
		return newAPIError(http.StatusUnauthorized, "signature_mismatch", "Signature verification failed", nil)
	default:
		logger.Error("verification failed", slog.Any("err", err))
		return newAPIError(http.StatusInternalServerError, "verification_failed", "Verification failed", nil)
	}
}

// canSee hides tasks owned by someone else behind a 404.
func canSee(ctx context.Context, task domain.Task) bool {
	p, ok := principalFromContext(ctx)
	if !ok {
		return false
	}
	return p.Admin || domain.SameIdentity(p.Identity, task.UserAddress)
}

func visibleTask(ctx context.Context, l *ledger.Ledger, id string) (domain.Task, error) {
	task, err := l.GetTask(ctx, id)
	if err != nil {
		return domain.Task{}, handleError(err)
	}
	if !canSee(ctx, task) {
		return domain.Task{}, newAPIError(http.StatusNotFound, "not_found", "task not found", nil)
	}
	return task, nil
}

// attachment resolves an uploaded file id to the reference stored on tasks
// and proofs.
func attachment(ctx context.Context, store *files.Store, id string) (*domain.FileRef, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, nil
	}
	rec, err := store.Get(ctx, id)
	switch {
	case err == nil, errors.Is(err, files.ErrNoData):
		return rec.Ref(), nil
	case errors.Is(err, files.ErrNotFound):
		return nil, newAPIError(http.StatusBadRequest, "bad_request", "unknown fileId", map[string]any{"fileId": id})
	default:
		return nil, handleError(err)
	}
}

func registerTasks(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID:   "task-create",
		Method:        http.MethodPost,
		Path:          "/tasks",
		Summary:       "Create a staked task",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body CreateTaskRequest `json:"body" required:"false"`
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		identity, herr := identityFromContext(ctx)
		if herr != nil {
			return nil, herr
		}
		raw := strings.TrimSpace(input.Body.Deadline)
		if raw == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "deadline is required", nil)
		}
		deadline, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "deadline must be an RFC3339 timestamp", map[string]any{"deadline": raw})
		}
		ref, err := attachment(ctx, cfg.Files, input.Body.FileID)
		if err != nil {
			return nil, err
		}
		task, err := cfg.Ledger.CreateTask(ledger.WithActor(ctx, identity), ledger.CreateTaskInput{
			Owner:        identity,
			Title:        input.Body.Title,
			Description:  input.Body.Description,
			StakedAmount: input.Body.StakedAmount,
			Deadline:     deadline,
			File:         ref,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: task}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "task-list",
		Method:      http.MethodGet,
		Path:        "/tasks",
		Summary:     "List the caller's tasks",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Task `json:"body"`
	}, error) {
		identity, herr := identityFromContext(ctx)
		if herr != nil {
			return nil, herr
		}
		tasks, err := cfg.Ledger.ListTasksByOwner(ctx, identity)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Task `json:"body"`
		}{Body: nonNilTasks(tasks)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "task-get",
		Method:      http.MethodGet,
		Path:        "/tasks/{id}",
		Summary:     "Show a task",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		task, err := visibleTask(ctx, cfg.Ledger, input.ID)
		if err != nil {
			return nil, err
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: task}, nil
	})
}

func registerProofs(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID:   "proof-submit",
		Method:        http.MethodPost,
		Path:          "/tasks/{id}/proofs",
		Summary:       "Submit proof of completion",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ID   string             `path:"id"`
		Body SubmitProofRequest `json:"body" required:"false"`
	}) (*struct {
		Body domain.Proof `json:"body"`
	}, error) {
		identity, herr := identityFromContext(ctx)
		if herr != nil {
			return nil, herr
		}
		task, err := visibleTask(ctx, cfg.Ledger, input.ID)
		if err != nil {
			return nil, err
		}
		if !domain.SameIdentity(task.UserAddress, identity) {
			return nil, handleError(auth.ForbiddenError{Permission: "task.owner"})
		}
		ref, err := attachment(ctx, cfg.Files, input.Body.FileID)
		if err != nil {
			return nil, err
		}
		proof, err := cfg.Ledger.SubmitProof(ledger.WithActor(ctx, identity), task.ID, ledger.SubmitProofInput{
			ProofText: input.Body.ProofText,
			File:      ref,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Proof `json:"body"`
		}{Body: proof}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "proof-list",
		Method:      http.MethodGet,
		Path:        "/tasks/{id}/proofs",
		Summary:     "List proofs submitted for a task",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body []domain.Proof `json:"body"`
	}, error) {
		task, err := visibleTask(ctx, cfg.Ledger, input.ID)
		if err != nil {
			return nil, err
		}
		proofs, err := cfg.Ledger.ListProofsForTask(ctx, task.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Proof `json:"body"`
		}{Body: nonNilProofs(proofs)}, nil
	})
}

func registerStats(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID: "stats-get",
		Method:      http.MethodGet,
		Path:        "/stats",
		Summary:     "Show the caller's statistics",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body domain.Stats `json:"body"`
	}, error) {
		identity, herr := identityFromContext(ctx)
		if herr != nil {
			return nil, herr
		}
		stats, err := cfg.Ledger.Stats(ctx, identity)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Stats `json:"body"`
		}{Body: stats}, nil
	})
}

const defaultMaxUploadBytes = 10_000_000

func (c Config) maxUpload() int64 {
	if c.MaxUploadBytes <= 0 {
		return defaultMaxUploadBytes
	}
	return c.MaxUploadBytes
}

// uploadBodyLimit sizes the JSON body for a file of maxFile bytes: base64
// grows it by 4/3 and the name and type fields need some room.
func uploadBodyLimit(maxFile int64) int64 {
	return (maxFile+2)/3*4 + 64<<10
}

func registerFiles(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID:   "file-upload",
		Method:        http.MethodPost,
		Path:          "/files",
		Summary:       "Upload an attachment",
		DefaultStatus: http.StatusCreated,
		MaxBodyBytes:  uploadBodyLimit(cfg.maxUpload()),
		Errors:        []int{http.StatusBadRequest, http.StatusRequestEntityTooLarge},
	}, func(ctx context.Context, input *struct {
		Body UploadFileRequest `json:"body" required:"false"`
	}) (*struct {
		Body domain.FileRecord `json:"body"`
	}, error) {
		if _, herr := identityFromContext(ctx); herr != nil {
			return nil, herr
		}
		if limit := cfg.maxUpload(); int64(len(input.Body.Data)) > limit {
			return nil, newAPIError(http.StatusRequestEntityTooLarge, "", "file too large", map[string]any{"maxBytes": limit})
		}
		rec, err := cfg.Files.Save(ctx, input.Body.Name, input.Body.Type, input.Body.Data)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.FileRecord `json:"body"`
		}{Body: rec}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "file-get",
		Method:      http.MethodGet,
		Path:        "/files/{id}",
		Summary:     "Download an attachment",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.FileRecord `json:"body"`
	}, error) {
		rec, err := cfg.Files.Get(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.FileRecord `json:"body"`
		}{Body: rec}, nil
	})
}

func registerBalance(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID: "balance-get",
		Method:      http.MethodGet,
		Path:        "/balance/{address}",
		Summary:     "Read an account balance from the chain",
		Errors:      []int{http.StatusBadRequest, http.StatusServiceUnavailable},
	}, func(ctx context.Context, input *struct {
		Address string `path:"address"`
	}) (*struct {
		Body BalanceResponse `json:"body"`
	}, error) {
		if cfg.Chain == nil {
			return nil, newAPIError(http.StatusServiceUnavailable, "chain_unavailable", "chain not configured", nil)
		}
		wei, err := cfg.Chain.Balance(ctx, input.Address)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body BalanceResponse `json:"body"`
		}{Body: BalanceResponse{
			Address: input.Address,
			Wei:     wei.String(),
			Eth:     chain.FormatEther(wei, 6),
		}}, nil
	})
}

// settleTimeout bounds the on-chain call made after a rejection.
const settleTimeout = 2 * time.Minute

func registerAdmin(api huma.API, cfg Config) {
	huma.Register(api, huma.Operation{
		OperationID: "admin-task-list",
		Method:      http.MethodGet,
		Path:        "/admin/tasks",
		Summary:     "List every task",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Task `json:"body"`
	}, error) {
		if _, err := requireAdmin(ctx); err != nil {
			return nil, handleError(err)
		}
		tasks, err := cfg.Ledger.ListAllTasks(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Task `json:"body"`
		}{Body: nonNilTasks(tasks)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "admin-proof-pending",
		Method:      http.MethodGet,
		Path:        "/admin/proofs/pending",
		Summary:     "List proofs awaiting review",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Proof `json:"body"`
	}, error) {
		if _, err := requireAdmin(ctx); err != nil {
			return nil, handleError(err)
		}
		proofs, err := cfg.Ledger.ListPendingProofs(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Proof `json:"body"`
		}{Body: nonNilProofs(proofs)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "admin-proof-review",
		Method:      http.MethodPost,
		Path:        "/admin/proofs/{id}/review",
		Summary:     "Approve or reject a proof",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ID   string             `path:"id"`
		Body ReviewProofRequest `json:"body" required:"false"`
	}) (*struct {
		Body domain.Proof `json:"body"`
	}, error) {
		reviewer, err := requireAdmin(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		if input.Body.Approved == nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "approved is required", nil)
		}
		approve := *input.Body.Approved
		proof, err := cfg.Ledger.ReviewProof(ledger.WithActor(ctx, reviewer), input.ID, approve, input.Body.ReviewNotes)
		if err != nil {
			return nil, handleError(err)
		}
		cfg.Logger.Info("proof reviewed",
			slog.String("proof", proof.ID),
			slog.String("task", proof.TaskID),
			slog.String("reviewer", reviewer),
			slog.Bool("approved", approve),
		)
		if !approve && cfg.Chain != nil {
			go settleRejection(cfg.Chain, cfg.Logger, proof.TaskID)
		}
		return &struct {
			Body domain.Proof `json:"body"`
		}{Body: proof}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "admin-stats-list",
		Method:      http.MethodGet,
		Path:        "/admin/stats",
		Summary:     "Show statistics for every identity",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]domain.Stats `json:"body"`
	}, error) {
		if _, err := requireAdmin(ctx); err != nil {
			return nil, handleError(err)
		}
		stats, err := cfg.Ledger.AllStats(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		if stats == nil {
			stats = map[string]domain.Stats{}
		}
		return &struct {
			Body map[string]domain.Stats `json:"body"`
		}{Body: stats}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "admin-event-list",
		Method:      http.MethodGet,
		Path:        "/admin/events",
		Summary:     "Tail the event log",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Limit int `query:"limit" default:"50" minimum:"1" maximum:"1000"`
	}) (*struct {
		Body []domain.Event `json:"body"`
	}, error) {
		if _, err := requireAdmin(ctx); err != nil {
			return nil, handleError(err)
		}
		evts, err := cfg.Ledger.RecentEvents(ctx, input.Limit)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Event `json:"body"`
		}{Body: nonNilEvents(evts)}, nil
	})
}

// settleRejection burns the stake of a rejected task on chain. The ledger
// decision is already committed, so failures are only logged.
func settleRejection(staking chain.Staking, logger *slog.Logger, taskID string) {
	ctx, cancel := context.WithTimeout(context.Background(), settleTimeout)
	defer cancel()
	rcpt, err := staking.FailTask(ctx, taskID)
	if err != nil {
		logger.Error("failTask settlement", slog.String("task", taskID), slog.Any("err", err))
		return
	}
	logger.Info("failTask settled", slog.String("task", taskID), slog.String("tx", rcpt.TxHash))
}
