package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"mime"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"zerolag/internal/app"
	"zerolag/internal/chain"
	"zerolag/internal/config"
	"zerolag/internal/db"
	"zerolag/internal/domain"
	"zerolag/internal/ethsig"
	"zerolag/internal/ledger"
	"zerolag/internal/server"
	"zerolag/internal/wallet"
	zerolagsdk "zerolag/sdk/go"
)

var rootCmd = &cobra.Command{
	Use:   "zl",
	Short: "Zerolag CLI",
	Long: `Zerolag keeps you honest with money on the line.
- Tasks: a goal with a title, a stake and a deadline, owned by a wallet address.
- Proofs: evidence that a task was done; one pending proof per task at a time.
- Review: an admin approves (stake returned, streak extended) or rejects (stake burned, streak reset).
- Sign-in: wallets prove ownership by signing a one-time challenge (zl login).
- Event log: every change is recorded, view with 'zl log tail'.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Println("error:", err)
		stop()
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("ZEROLAG")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().String("config", "", "config file (defaults to <workspace>/zerolag.yml)")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor", "", "identity recorded on events (defaults to the task owner)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor", rootCmd.PersistentFlags().Lookup("actor"))
}

func registerCommands() {
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(proofCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(walletCmd())
	rootCmd.AddCommand(loginCmd())
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Manage zerolag.yml"}
	cfg.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write the default config into the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.DefaultTemplate), 0o644); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	})
	cfg.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadConfig()
			if err != nil {
				return err
			}
			if c.Chain.PrivateKey != "" {
				c.Chain.PrivateKey = "<redacted>"
			}
			return printJSON(c)
		},
	})
	return cfg
}

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			secret := viper.GetString("jwt-secret")
			if secret == "" {
				return fmt.Errorf("ZEROLAG_JWT_SECRET is required for bearer auth")
			}
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}
			logger := app.NewLogger(os.Stderr, cfg)
			a, err := app.Open(cmd.Context(), viper.GetString("workspace"), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()
			srvCfg := server.Config{
				Auth:           a.Auth,
				Ledger:         a.Ledger,
				Files:          a.Files,
				MaxUploadBytes: cfg.Files.MaxUploadBytes,
				BasePath:       cfg.Server.BasePath,
				Session: server.AuthConfig{
					JWTSecret:  secret,
					SessionTTL: cfg.Auth.SessionTTL,
					Admins:     cfg.Auth.Admins,
				},
				CORSOrigins: cfg.Server.CORSOrigins,
				Logger:      logger,
			}
			if a.Chain != nil {
				srvCfg.Chain = a.Chain
			}
			handler, err := server.New(srvCfg)
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: cfg.Server.Addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			logger.Info("serving zerolag API",
				"addr", cfg.Server.Addr,
				"base_path", cfg.Server.BasePath,
				"store", cfg.Store.Backend,
				"challenges", cfg.Challenges.Backend,
				"chain", a.Chain != nil,
			)
			fmt.Printf("Serving Zerolag API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", cfg.Server.Addr, cfg.Server.BasePath, cfg.Server.BasePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

func taskCmd() *cobra.Command {
	task := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks",
		Long:  "Tasks are staked goals. They start active and end completed (proof approved) or failed (proof rejected).",
	}
	task.AddCommand(taskCreateCmd())
	task.AddCommand(taskListCmd())
	task.AddCommand(taskShowCmd())
	task.AddCommand(taskClaimCmd())
	return task
}

func taskCreateCmd() *cobra.Command {
	var in ledger.CreateTaskInput
	var deadline, filePath, walletKey string
	var within time.Duration
	var stakeOnChain bool
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			switch {
			case deadline != "":
				d, err := time.Parse(time.RFC3339, deadline)
				if err != nil {
					return fmt.Errorf("--deadline must be RFC3339: %w", err)
				}
				in.Deadline = d
			case within > 0:
				in.Deadline = time.Now().Add(within)
			default:
				return fmt.Errorf("--deadline or --in required")
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if filePath != "" {
					ref, err := uploadFile(ctx, a, filePath)
					if err != nil {
						return err
					}
					in.File = ref
				}
				t, err := a.Ledger.CreateTask(withActor(ctx), in)
				if err != nil {
					return err
				}
				if stakeOnChain {
					w, err := chainWallet(a, walletKey)
					if err != nil {
						return err
					}
					rcpt, err := wallet.StakeTask(ctx, w, t)
					if err != nil {
						return fmt.Errorf("task %s created but staking failed: %w", t.ID, err)
					}
					fmt.Fprintf(os.Stderr, "staked %s in tx %s\n", chain.FormatEther(mustWei(t.StakedAmount), 6), rcpt.TxHash)
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&in.Owner, "owner", "", "owner wallet address")
	cmd.Flags().StringVar(&in.Title, "title", "", "title")
	cmd.Flags().StringVar(&in.Description, "description", "", "description")
	cmd.Flags().Float64Var(&in.StakedAmount, "stake", 0, "stake in ETH")
	cmd.Flags().StringVar(&deadline, "deadline", "", "deadline (RFC3339)")
	cmd.Flags().DurationVar(&within, "in", 0, "deadline relative to now, e.g. 72h")
	cmd.Flags().StringVar(&filePath, "file", "", "attach a file")
	cmd.Flags().BoolVar(&stakeOnChain, "stake-on-chain", false, "lock the stake in the staking contract")
	cmd.Flags().StringVar(&walletKey, "key", "", "wallet private key for --stake-on-chain (or ZEROLAG_WALLET_KEY)")
	_ = cmd.MarkFlagRequired("owner")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func taskListCmd() *cobra.Command {
	var owner string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				var (
					items []domain.Task
					err   error
				)
				if owner != "" {
					items, err = a.Ledger.ListTasksByOwner(ctx, owner)
				} else {
					items, err = a.Ledger.ListAllTasks(ctx)
				}
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Owner", "Title", "Stake", "Deadline", "Status", "Proof"})
				for _, t := range items {
					proof := ""
					if t.ProofSubmitted {
						proof = "yes"
					}
					tw.AppendRow(table.Row{t.ID, t.UserAddress, t.Title, t.StakedAmount, t.Deadline.Format(time.RFC3339), t.Status, proof})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "only tasks owned by this address")
	return cmd
}

func taskShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a task and its proofs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				t, err := a.Ledger.GetTask(ctx, args[0])
				if err != nil {
					return err
				}
				proofs, err := a.Ledger.ListProofsForTask(ctx, t.ID)
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{"task": t, "proofs": proofs})
			})
		},
	}
	return cmd
}

func taskClaimCmd() *cobra.Command {
	var walletKey string
	cmd := &cobra.Command{
		Use:   "claim <id>",
		Short: "Claim the on-chain stake of a completed task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				t, err := a.Ledger.GetTask(ctx, args[0])
				if err != nil {
					return err
				}
				if t.Status != domain.TaskCompleted {
					return fmt.Errorf("task %s is %s, not completed", t.ID, t.Status)
				}
				w, err := chainWallet(a, walletKey)
				if err != nil {
					return err
				}
				rcpt, err := wallet.ClaimStake(ctx, w, t.ID)
				if err != nil {
					return err
				}
				return printJSONOrTable(rcpt)
			})
		},
	}
	cmd.Flags().StringVar(&walletKey, "key", "", "wallet private key (or ZEROLAG_WALLET_KEY)")
	return cmd
}

func proofCmd() *cobra.Command {
	proof := &cobra.Command{Use: "proof", Short: "Submit and review proofs"}
	proof.AddCommand(proofSubmitCmd())
	proof.AddCommand(proofReviewCmd())
	proof.AddCommand(proofPendingCmd())
	proof.AddCommand(proofListCmd())
	proof.AddCommand(&cobra.Command{
		Use:   "show <proof-id>",
		Short: "Show a proof",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				p, err := a.Ledger.GetProof(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	})
	return proof
}

func proofSubmitCmd() *cobra.Command {
	var in ledger.SubmitProofInput
	var filePath string
	cmd := &cobra.Command{
		Use:   "submit <task-id>",
		Short: "Submit proof for a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if filePath != "" {
					ref, err := uploadFile(ctx, a, filePath)
					if err != nil {
						return err
					}
					in.File = ref
				}
				p, err := a.Ledger.SubmitProof(withActor(ctx), args[0], in)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&in.ProofText, "text", "", "proof text")
	cmd.Flags().StringVar(&filePath, "file", "", "attach a file")
	return cmd
}

func proofReviewCmd() *cobra.Command {
	var approve, reject, settle bool
	var notes string
	cmd := &cobra.Command{
		Use:   "review <proof-id>",
		Short: "Approve or reject a pending proof",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if approve == reject {
				return fmt.Errorf("exactly one of --approve or --reject required")
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if len(a.Config.Auth.Admins) > 0 && !a.Config.IsAdmin(viper.GetString("actor")) {
					return fmt.Errorf("--actor must be listed in auth.admins to review proofs")
				}
				p, err := a.Ledger.ReviewProof(withActor(ctx), args[0], approve, notes)
				if err != nil {
					return err
				}
				if reject && settle {
					if a.Chain == nil || a.Chain.Key == nil {
						return fmt.Errorf("proof rejected but --settle needs chain.rpc_url, chain.contract and a signing key")
					}
					rcpt, err := a.Chain.FailTask(ctx, p.TaskID)
					if err != nil {
						return fmt.Errorf("proof rejected but failTask failed: %w", err)
					}
					fmt.Fprintf(os.Stderr, "failTask settled in tx %s\n", rcpt.TxHash)
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().BoolVar(&approve, "approve", false, "approve the proof")
	cmd.Flags().BoolVar(&reject, "reject", false, "reject the proof")
	cmd.Flags().StringVar(&notes, "notes", "", "review notes")
	cmd.Flags().BoolVar(&settle, "settle", false, "call failTask on chain after a rejection")
	return cmd
}

func proofPendingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "List proofs awaiting review",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				items, err := a.Ledger.ListPendingProofs(ctx)
				if err != nil {
					return err
				}
				return printProofs(items)
			})
		},
	}
}

func proofListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <task-id>",
		Short: "List proofs for a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				items, err := a.Ledger.ListProofsForTask(ctx, args[0])
				if err != nil {
					return err
				}
				return printProofs(items)
			})
		},
	}
}

func printProofs(items []domain.Proof) error {
	if viper.GetBool("json") {
		return printJSON(items)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "Task", "Status", "Submitted", "Text", "File"})
	for _, p := range items {
		file := ""
		if p.FileData != nil {
			file = p.FileData.FileName
		}
		tw.AppendRow(table.Row{p.ID, p.TaskID, p.Status, p.SubmittedAt.Format(time.RFC3339), p.ProofText, file})
	}
	tw.Render()
	return nil
}

func statsCmd() *cobra.Command {
	stats := &cobra.Command{Use: "stats", Short: "Show completion statistics"}
	stats.AddCommand(&cobra.Command{
		Use:   "show <address>",
		Short: "Show statistics for one wallet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				s, err := a.Ledger.Stats(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	})
	stats.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Show statistics for every wallet",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				all, err := a.Ledger.AllStats(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(all)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Address", "Tasks", "Completed", "Failed", "Staked", "Returned", "Burned", "Streak", "Longest"})
				for addr, s := range all {
					tw.AppendRow(table.Row{addr, s.TotalTasks, s.CompletedTasks, s.FailedTasks, s.TotalStaked, s.TotalReturned, s.TotalBurned, s.CurrentStreak, s.LongestStreak})
				}
				tw.SortBy([]table.SortBy{{Name: "Address", Mode: table.Asc}})
				tw.Render()
				return nil
			})
		},
	})
	return stats
}

func logCmd() *cobra.Command {
	lg := &cobra.Command{Use: "log", Short: "Inspect the event log"}
	lg.AddCommand(logTailCmd())
	return lg
}

func logTailCmd() *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				evts, err := a.Ledger.RecentEvents(ctx, n)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(evts)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "TS", "Type", "Entity", "Actor"})
				for _, e := range evts {
					tw.AppendRow(table.Row{e.ID, e.TS.Format(time.RFC3339), e.Type, e.EntityKind + "/" + e.EntityID, e.Actor})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	return cmd
}

func walletCmd() *cobra.Command {
	w := &cobra.Command{Use: "wallet", Short: "Local wallet helpers"}
	w.AddCommand(&cobra.Command{
		Use:   "new",
		Short: "Generate a new wallet key",
		RunE: func(cmd *cobra.Command, args []string) error {
			kw, err := wallet.Generate()
			if err != nil {
				return err
			}
			return printJSONOrTable(map[string]string{"address": kw.Address(), "private_key": kw.PrivateKeyHex()})
		},
	})

	var key string
	addr := &cobra.Command{
		Use:   "address",
		Short: "Print the address of a wallet key",
		RunE: func(cmd *cobra.Command, args []string) error {
			kw, err := loadWallet(key)
			if err != nil {
				return err
			}
			fmt.Println(kw.Address())
			return nil
		},
	}
	addr.Flags().StringVar(&key, "key", "", "wallet private key (or ZEROLAG_WALLET_KEY)")
	w.AddCommand(addr)

	var signKey string
	sign := &cobra.Command{
		Use:   "sign <message>",
		Short: "Sign a message with EIP-191 personal_sign",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kw, err := loadWallet(signKey)
			if err != nil {
				return err
			}
			sig, err := kw.SignMessage(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Println(sig)
			return nil
		},
	}
	sign.Flags().StringVar(&signKey, "key", "", "wallet private key (or ZEROLAG_WALLET_KEY)")
	w.AddCommand(sign)

	w.AddCommand(&cobra.Command{
		Use:   "balance <address>",
		Short: "Read an account balance from the configured chain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !ethsig.IsAddress(args[0]) {
				return fmt.Errorf("%w: %q", chain.ErrInvalidAddress, args[0])
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if a.Chain == nil {
					return fmt.Errorf("chain not configured (set chain.rpc_url and chain.contract)")
				}
				wei, err := a.Chain.Balance(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]string{
					"address": args[0],
					"wei":     wei.String(),
					"eth":     chain.FormatEther(wei, 6),
				})
			})
		},
	})
	return w
}

func loginCmd() *cobra.Command {
	var serverURL, key string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to a zerolag server with a wallet key",
		RunE: func(cmd *cobra.Command, args []string) error {
			kw, err := loadWallet(key)
			if err != nil {
				return err
			}
			client := zerolagsdk.New(serverURL)
			sess, err := client.Login(cmd.Context(), kw)
			if err != nil {
				var apiErr *zerolagsdk.APIError
				if errors.As(err, &apiErr) {
					return fmt.Errorf("login failed (%d): %s", apiErr.StatusCode, apiErr.Message())
				}
				return err
			}
			if viper.GetBool("json") {
				return printJSON(sess)
			}
			fmt.Printf("Signed in as %s\n", sess.User.Address)
			fmt.Printf("export ZEROLAG_TOKEN=%s\n", sess.Token)
			return nil
		},
	}
	cmd.Flags().StringVar(&serverURL, "server", "http://127.0.0.1:4000/api", "API base URL")
	cmd.Flags().StringVar(&key, "key", "", "wallet private key (or ZEROLAG_WALLET_KEY)")
	return cmd
}

// --- helpers ---

func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if p := viper.GetString("config"); p != "" {
		cfg, err = config.FromFile(p)
	} else {
		cfg, err = config.Load(viper.GetString("workspace"))
	}
	if err != nil {
		return nil, err
	}
	if k := viper.GetString("chain-private-key"); k != "" {
		cfg.Chain.PrivateKey = k
	}
	return cfg, nil
}

func withApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := app.Open(ctx, viper.GetString("workspace"), cfg, app.NewLogger(os.Stderr, cfg))
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func withActor(ctx context.Context) context.Context {
	if actor := strings.TrimSpace(viper.GetString("actor")); actor != "" {
		return ledger.WithActor(ctx, actor)
	}
	return ctx
}

func loadWallet(key string) (*wallet.KeyWallet, error) {
	if key == "" {
		key = viper.GetString("wallet-key")
	}
	if key == "" {
		return nil, fmt.Errorf("--key or ZEROLAG_WALLET_KEY required")
	}
	return wallet.FromHex(key)
}

// chainWallet binds a user wallet to the configured contract so transactions
// are signed by that wallet instead of the operator key.
func chainWallet(a *app.App, key string) (*wallet.KeyWallet, error) {
	if a.Chain == nil {
		return nil, wallet.ErrNoContract
	}
	kw, err := loadWallet(key)
	if err != nil {
		return nil, err
	}
	bound := *a.Chain
	bound.Key = kw.Key()
	kw.Contract = &bound
	return kw, nil
}

func uploadFile(ctx context.Context, a *app.App, path string) (*domain.FileRef, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	rec, err := a.Files.Save(ctx, filepath.Base(path), mime.TypeByExtension(filepath.Ext(path)), data)
	if err != nil {
		return nil, err
	}
	return rec.Ref(), nil
}

func mustWei(eth float64) *big.Int {
	wei, err := chain.EtherFromFloat(eth)
	if err != nil {
		return new(big.Int)
	}
	return wei
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
