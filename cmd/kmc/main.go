package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	cl "kidsmoney/internal/cli"
	"kidsmoney/internal/config"
	"kidsmoney/internal/syncq"
)

func main() {
	cfg := config.LoadCLIFromEnv()
	apiBase := cfg.APIBaseURL

	root := &cobra.Command{
		Use:          "kmc",
		Short:        "Kids money town command line client",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&apiBase, "api", apiBase, "API base URL")

	root.AddCommand(
		newLoginCmd(&apiBase),
		newLogoutCmd(),
		newStatusCmd(&apiBase),
		newStocksCmd(&apiBase),
		newTradeCmd(&apiBase, "buy"),
		newTradeCmd(&apiBase, "sell"),
		newUnlockCmd(&apiBase),
		newLandCmd(&apiBase),
		newLoanCmd(&apiBase),
		newBankCmd(&apiBase),
		newJobCmd(&apiBase),
		newShopCmd(&apiBase),
		newTransferCmd(&apiBase),
		newMessageCmd(&apiBase),
		newCallCmd(&apiBase),
		newPolicyCmd(&apiBase),
		newLeaderboardCmd(&apiBase),
		newWatchCmd(&apiBase),
		newQueueCmd(),
		newSyncCmd(&apiBase),
		newAdminCmd(&apiBase),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func session(apiBase *string) (*cl.Client, cl.Session, error) {
	sess, err := cl.LoadSession()
	if err != nil {
		return nil, cl.Session{}, fmt.Errorf("login required: %w", err)
	}
	return cl.NewClient(strings.TrimSpace(*apiBase), sess.UserID), sess, nil
}

func newLoginCmd(apiBase *string) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "login [user-id]",
		Short: "Pick who you play as; new ids are signed up",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID := ""
			if len(args) > 0 {
				userID = strings.TrimSpace(args[0])
			} else {
				var err error
				if userID, err = promptRequired("User id"); err != nil {
					return err
				}
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			client := cl.NewClient(strings.TrimSpace(*apiBase), userID)
			out, err := client.Signup(ctx, name)
			var apiErr *cl.APIError
			switch {
			case err == nil:
				printSuccess(fmt.Sprintf("Welcome to town! Starting balance: %s coins.", coins(receiptAmount(out))))
			case errors.As(err, &apiErr) && apiErr.Status == 409:
				printInfo("Welcome back.")
			default:
				return err
			}
			if err := cl.SaveSession(cl.Session{UserID: userID, Name: name, APIBaseURL: *apiBase}); err != nil {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name for new players")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved user id",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cl.ClearSession(); err != nil {
				return err
			}
			printSuccess("Logged out.")
			return nil
		},
	}
}

func newStatusCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:     "status",
		Aliases: []string{"dash"},
		Short:   "Show your wallet, the clock and the news",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := session(apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := client.State(ctx, 0)
			if err != nil {
				return err
			}
			return renderStatus(out)
		},
	}
}

func newStocksCmd(apiBase *string) *cobra.Command {
	var forbidden bool
	cmd := &cobra.Command{
		Use:     "stocks [ID]",
		Aliases: []string{"stock"},
		Short:   "List stocks or inspect one",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := session(apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			if len(args) == 1 {
				out, err := client.StockDetail(ctx, strings.ToUpper(args[0]))
				if err != nil {
					return err
				}
				return renderStockDetail(out)
			}
			if forbidden {
				out, err := client.ForbiddenMarket(ctx)
				if err != nil {
					return err
				}
				return renderStocksList(out, "FORBIDDEN MARKET")
			}
			out, err := client.ListStocks(ctx)
			if err != nil {
				return err
			}
			return renderStocksList(out, "STOCK MARKET")
		},
	}
	cmd.Flags().BoolVar(&forbidden, "forbidden", false, "list the forbidden market")
	return cmd
}

func newTradeCmd(apiBase *string, side string) *cobra.Command {
	var forbidden bool
	cmd := &cobra.Command{
		Use:   side + " <ID> <quantity>",
		Short: strings.ToUpper(side[:1]) + side[1:] + " shares",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			qty, err := positiveArg(args[1], "quantity")
			if err != nil {
				return err
			}
			stock := strings.ToUpper(strings.TrimSpace(args[0]))
			return sendCommand(cmd, apiBase, syncq.Command{
				Method: "POST",
				Path:   "/v1/stocks/" + stock + "/" + side,
				Body:   map[string]any{"quantity": qty, "forbidden": forbidden},
			}, fmt.Sprintf("%s %d %s", side, qty, stock))
		},
	}
	cmd.Flags().BoolVar(&forbidden, "forbidden", false, "trade on the forbidden market")
	return cmd
}

func newUnlockCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "unlock",
		Short: "Pay to unlock the forbidden market",
		RunE: func(cmd *cobra.Command, args []string) error {
			return sendAction(cmd, apiBase, map[string]any{"kind": "unlock_forbidden"}, "forbidden market unlocked")
		},
	}
}

func newLandCmd(apiBase *string) *cobra.Command {
	land := &cobra.Command{
		Use:   "land",
		Short: "Browse and buy land",
	}
	land.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List parcels for sale",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := session(apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := client.State(ctx, 0)
			if err != nil {
				return err
			}
			return renderLands(out)
		},
	})
	land.AddCommand(&cobra.Command{
		Use:   "buy <ID>",
		Short: "Buy a parcel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return sendCommand(cmd, apiBase, syncq.Command{
				Method: "POST",
				Path:   "/v1/lands/" + strings.TrimSpace(args[0]) + "/buy",
				Body:   map[string]any{},
			}, "bought parcel "+args[0])
		},
	})
	return land
}

func newLoanCmd(apiBase *string) *cobra.Command {
	loan := &cobra.Command{
		Use:   "loan",
		Short: "Borrow and repay",
	}
	for _, op := range []string{"take", "repay"} {
		op := op
		loan.AddCommand(&cobra.Command{
			Use:   op + " <amount>",
			Short: strings.ToUpper(op[:1]) + op[1:] + " a loan",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				amount, err := positiveArg(args[0], "amount")
				if err != nil {
					return err
				}
				return sendCommand(cmd, apiBase, syncq.Command{
					Method: "POST",
					Path:   "/v1/loans/" + op,
					Body:   map[string]any{"amount": amount},
				}, fmt.Sprintf("loan %s %s", op, coins(amount)))
			},
		})
	}
	loan.AddCommand(&cobra.Command{
		Use:   "request <amount>",
		Short: "Ask the banker for a loan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := positiveArg(args[0], "amount")
			if err != nil {
				return err
			}
			return sendAction(cmd, apiBase, map[string]any{"kind": "request_loan", "amount": amount}, "loan request sent")
		},
	})
	loan.AddCommand(&cobra.Command{
		Use:   "decide <request-id> <approve|reject>",
		Short: "Approve or reject a pending loan request (bankers)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			approve, err := yesNo(args[1])
			if err != nil {
				return err
			}
			return sendAction(cmd, apiBase, map[string]any{"kind": "decide_request", "requestId": args[0], "approve": approve}, "request decided")
		},
	})
	return loan
}

func newBankCmd(apiBase *string) *cobra.Command {
	bank := &cobra.Command{
		Use:   "bank",
		Short: "Move money in and out of savings",
	}
	for _, op := range []string{"deposit", "withdraw"} {
		op := op
		bank.AddCommand(&cobra.Command{
			Use:   op + " <amount>",
			Short: strings.ToUpper(op[:1]) + op[1:] + " savings",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				amount, err := positiveArg(args[0], "amount")
				if err != nil {
					return err
				}
				return sendAction(cmd, apiBase, map[string]any{"kind": op, "amount": amount}, op+" done")
			},
		})
	}
	return bank
}

func newJobCmd(apiBase *string) *cobra.Command {
	job := &cobra.Command{
		Use:   "job",
		Short: "Work for coins",
	}
	job.AddCommand(&cobra.Command{
		Use:   "set <job>",
		Short: "Take a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return sendAction(cmd, apiBase, map[string]any{"kind": "set_job", "job": args[0]}, "you are now a "+args[0])
		},
	})
	job.AddCommand(&cobra.Command{
		Use:   "result <score>",
		Short: "Report a minigame score",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			score, err := positiveArg(args[0], "score")
			if err != nil {
				return err
			}
			return sendAction(cmd, apiBase, map[string]any{"kind": "job_result", "score": score}, "shift finished")
		},
	})
	return job
}

func newShopCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "shop <item> [quantity]",
		Short: "Buy an item",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			qty := int64(1)
			if len(args) == 2 {
				v, err := positiveArg(args[1], "quantity")
				if err != nil {
					return err
				}
				qty = v
			}
			return sendAction(cmd, apiBase, map[string]any{"kind": "purchase_item", "item": args[0], "quantity": qty}, "bought "+args[0])
		},
	}
}

func newTransferCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "transfer <user-id> <amount>",
		Short: "Send coins to another player",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := positiveArg(args[1], "amount")
			if err != nil {
				return err
			}
			return sendAction(cmd, apiBase, map[string]any{"kind": "transfer", "targetId": args[0], "amount": amount}, "sent "+coins(amount)+" to "+args[0])
		},
	}
}

func newMessageCmd(apiBase *string) *cobra.Command {
	msg := &cobra.Command{
		Use:     "message",
		Aliases: []string{"msg"},
		Short:   "Send and read messages",
	}
	msg.AddCommand(&cobra.Command{
		Use:   "send <user-id> <text...>",
		Short: "Send a message",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := strings.Join(args[1:], " ")
			return sendAction(cmd, apiBase, map[string]any{"kind": "send_message", "targetId": args[0], "body": body}, "message sent")
		},
	})
	msg.AddCommand(&cobra.Command{
		Use:   "read",
		Short: "Show your messages and mark them read",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, sess, err := session(apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := client.Action(ctx, map[string]any{"kind": "read_messages"}, uuid.NewString())
			if err != nil {
				return err
			}
			return renderMessages(out, sess.UserID)
		},
	})
	return msg
}

func newCallCmd(apiBase *string) *cobra.Command {
	call := &cobra.Command{
		Use:   "call",
		Short: "Phone other players",
	}
	call.AddCommand(&cobra.Command{
		Use:   "start <user-id>",
		Short: "Ring a player",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return sendAction(cmd, apiBase, map[string]any{"kind": "start_call", "targetId": args[0]}, "ringing "+args[0])
		},
	})
	for _, op := range []string{"accept", "decline", "end"} {
		op := op
		call.AddCommand(&cobra.Command{
			Use:   op + " <call-id>",
			Short: strings.ToUpper(op[:1]) + op[1:] + " a call",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return sendAction(cmd, apiBase, map[string]any{"kind": op + "_call", "callId": args[0]}, "call "+op)
			},
		})
	}
	return call
}

func newPolicyCmd(apiBase *string) *cobra.Command {
	policy := &cobra.Command{
		Use:   "policy",
		Short: "Propose and vote on town policies",
	}
	var duration time.Duration
	propose := &cobra.Command{
		Use:   "propose <tax_rate|grant> <value> <title...>",
		Short: "Start an election",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			effect := map[string]any{"kind": args[0]}
			switch args[0] {
			case "tax_rate":
				effect["taxRate"] = args[1]
			case "grant":
				v, err := positiveArg(args[1], "grant")
				if err != nil {
					return err
				}
				effect["amount"] = v
			default:
				return fmt.Errorf("effect must be tax_rate or grant")
			}
			proposal := map[string]any{"title": strings.Join(args[2:], " "), "effect": effect}
			if duration > 0 {
				proposal["durationMs"] = duration.Milliseconds()
			}
			return sendAction(cmd, apiBase, map[string]any{"kind": "propose_policy", "proposal": proposal}, "election started")
		},
	}
	propose.Flags().DurationVar(&duration, "for", 0, "how long voting stays open")
	policy.AddCommand(propose)
	policy.AddCommand(&cobra.Command{
		Use:   "vote <proposal-id> <yes|no>",
		Short: "Vote on the active proposal",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			approve, err := yesNo(args[1])
			if err != nil {
				return err
			}
			return sendAction(cmd, apiBase, map[string]any{"kind": "vote_policy", "targetId": args[0], "approve": approve}, "vote counted")
		},
	})
	return policy
}

func newLeaderboardCmd(apiBase *string) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Richest players",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := session(apiBase)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			out, err := client.Leaderboard(ctx, limit)
			if err != nil {
				return err
			}
			return renderLeaderboard(out)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "rows to show")
	return cmd
}

func newWatchCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Stream live notifications until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, sess, err := session(apiBase)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			printInfo(fmt.Sprintf("Watching as %s. Ctrl+C to stop.", sess.UserID))
			return client.Watch(ctx, renderFrame)
		},
	}
}

func newQueueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "queue",
		Short: "Show actions waiting to be synced",
		RunE: func(cmd *cobra.Command, args []string) error {
			queue, err := syncq.Load()
			if err != nil {
				return err
			}
			return renderQueue(queue)
		},
	}
}

func newSyncCmd(apiBase *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Replay actions queued while offline",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := session(apiBase)
			if err != nil {
				return err
			}
			queue, err := syncq.Load()
			if err != nil {
				return err
			}
			if len(queue) == 0 {
				printInfo("Sync queue is empty.")
				return nil
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
			defer cancel()

			remaining, outcomes := syncq.Replay(ctx, queue, func(ctx context.Context, q syncq.Command) (bool, error) {
				_, err := client.Do(ctx, q.Method, q.Path, q.Body, q.IdempotencyKey)
				return cl.IsOffline(err), err
			})
			replayed := 0
			for _, o := range outcomes {
				if o.Err != nil {
					printError(fmt.Sprintf("%s %s: %v", o.Command.Method, o.Command.Path, o.Err))
					continue
				}
				replayed++
			}
			if err := syncq.Save(remaining); err != nil {
				return err
			}
			printSuccess(fmt.Sprintf("Sync complete: replayed=%d remaining=%d", replayed, len(remaining)))
			return nil
		},
	}
}

func newAdminCmd(apiBase *string) *cobra.Command {
	admin := &cobra.Command{
		Use:   "admin",
		Short: "Town hall tools (admins only)",
	}
	admin.AddCommand(&cobra.Command{
		Use:   "grant <amount> [note...]",
		Short: "Give every player coins",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := positiveArg(args[0], "amount")
			if err != nil {
				return err
			}
			return sendCommand(cmd, apiBase, syncq.Command{
				Method: "POST",
				Path:   "/v1/admin/grant",
				Body:   map[string]any{"amount": amount, "note": strings.Join(args[1:], " ")},
			}, "grant paid")
		},
	})

	var taxRate, depositRate, loanRate, salary string
	var loanCap int64
	var turn time.Duration
	settings := &cobra.Command{
		Use:   "settings",
		Short: "Change economy settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]any{}
			for key, v := range map[string]string{"taxRate": taxRate, "depositRate": depositRate, "loanRate": loanRate, "salaryMultiplier": salary} {
				if v != "" {
					body[key] = v
				}
			}
			if cmd.Flags().Changed("loan-cap") {
				body["loanCap"] = loanCap
			}
			if turn > 0 {
				body["turnDurationMs"] = turn.Milliseconds()
			}
			if len(body) == 0 {
				return fmt.Errorf("nothing to change")
			}
			return sendCommand(cmd, apiBase, syncq.Command{Method: "POST", Path: "/v1/admin/settings", Body: body}, "settings saved")
		},
	}
	settings.Flags().StringVar(&taxRate, "tax", "", "tax rate, e.g. 0.05")
	settings.Flags().StringVar(&depositRate, "deposit-rate", "", "savings interest per turn")
	settings.Flags().StringVar(&loanRate, "loan-rate", "", "loan interest per turn")
	settings.Flags().StringVar(&salary, "salary", "", "salary multiplier")
	settings.Flags().Int64Var(&loanCap, "loan-cap", 0, "maximum outstanding debt")
	settings.Flags().DurationVar(&turn, "turn", 0, "turn length")
	admin.AddCommand(settings)

	admin.AddCommand(&cobra.Command{
		Use:   "timer <start|pause>",
		Short: "Start or pause the turn timer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			running := args[0] == "start"
			if !running && args[0] != "pause" {
				return fmt.Errorf("use start or pause")
			}
			return sendAction(cmd, apiBase, map[string]any{"kind": "admin_timer", "running": running}, "timer "+args[0])
		},
	})

	var landKind string
	var x, y int
	var publish bool
	create := &cobra.Command{
		Use:   "land-create <name> <price>",
		Short: "Put a new parcel on the map",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			price, err := positiveArg(args[1], "price")
			if err != nil {
				return err
			}
			land := map[string]any{"name": args[0], "price": price, "x": x, "y": y, "publish": publish}
			if landKind != "" {
				land["kind"] = landKind
			}
			return sendAction(cmd, apiBase, map[string]any{"kind": "admin_create_land", "land": land}, "parcel created")
		},
	}
	create.Flags().StringVar(&landKind, "kind", "", "land kind")
	create.Flags().IntVar(&x, "x", 0, "grid column")
	create.Flags().IntVar(&y, "y", 0, "grid row")
	create.Flags().BoolVar(&publish, "publish", false, "publish right away")
	admin.AddCommand(create)

	for _, op := range []struct{ use, kind string }{
		{"land-publish", "admin_publish_land"},
		{"land-unpublish", "admin_unpublish_land"},
		{"land-delete", "delete_land"},
	} {
		op := op
		admin.AddCommand(&cobra.Command{
			Use:   op.use + " <land-id>",
			Short: strings.ReplaceAll(op.use, "-", " "),
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return sendAction(cmd, apiBase, map[string]any{"kind": op.kind, "landId": args[0]}, op.use+" done")
			},
		})
	}

	admin.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Remove every player and start the town over",
		RunE: func(cmd *cobra.Command, args []string) error {
			ok, err := promptChoice("Really reset the town", []string{"yes", "no"}, "no")
			if err != nil {
				return err
			}
			if ok != "yes" {
				printInfo("Nothing changed.")
				return nil
			}
			return sendAction(cmd, apiBase, map[string]any{"kind": "admin_reset"}, "town reset")
		},
	})
	return admin
}

func sendAction(cmd *cobra.Command, apiBase *string, body map[string]any, done string) error {
	return sendCommand(cmd, apiBase, syncq.Command{Method: "POST", Path: "/v1/actions", Body: body}, done)
}

// sendCommand sends q with a fresh idempotency key and queues it for
// `kmc sync` when the server cannot be reached.
func sendCommand(cmd *cobra.Command, apiBase *string, q syncq.Command, done string) error {
	client, _, err := session(apiBase)
	if err != nil {
		return err
	}
	q.IdempotencyKey = uuid.NewString()
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()
	out, err := client.Do(ctx, q.Method, q.Path, q.Body, q.IdempotencyKey)
	if err != nil {
		return queueOnNetworkError(err, q)
	}
	return renderResult(out, done)
}

func queueOnNetworkError(err error, q syncq.Command) error {
	if !cl.IsOffline(err) {
		return err
	}
	if qerr := syncq.Push(q); qerr != nil {
		return fmt.Errorf("request failed (%v) and could not be queued: %w", err, qerr)
	}
	printWarn(fmt.Sprintf("Server unreachable (%v). Queued; run `kmc sync` later.", err))
	return nil
}

func positiveArg(s, label string) (int64, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("invalid %s", label)
	}
	return v, nil
}

func yesNo(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "y", "approve":
		return true, nil
	case "no", "n", "reject":
		return false, nil
	}
	return false, fmt.Errorf("answer yes or no")
}
