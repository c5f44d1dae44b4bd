package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"kidsmoney/internal/game"
	"kidsmoney/internal/model"
	"kidsmoney/internal/syncq"
)

var (
	stdinReader = bufio.NewReader(os.Stdin)
	accent      = color.New(color.FgCyan, color.Bold)
	success     = color.New(color.FgGreen, color.Bold)
	warn        = color.New(color.FgYellow, color.Bold)
	danger      = color.New(color.FgRed, color.Bold)
	neutral     = color.New(color.FgHiWhite)
)

type stocksPayload struct {
	Stocks []game.StockView `json:"stocks"`
}

type leaderboardPayload struct {
	Rows []game.LeaderboardRow `json:"rows"`
}

func printSuccess(msg string) {
	success.Println(msg)
}

func printWarn(msg string) {
	warn.Println(msg)
}

func printError(msg string) {
	danger.Println(msg)
}

func printInfo(msg string) {
	neutral.Println(msg)
}

func promptRequired(label string) (string, error) {
	for {
		fmt.Printf("%s: ", label)
		text, err := stdinReader.ReadString('\n')
		if err != nil {
			return "", err
		}
		text = strings.TrimSpace(text)
		if text != "" {
			return text, nil
		}
		printWarn(label + " is required.")
	}
}

func promptChoice(label string, options []string, defaultValue string) (string, error) {
	normalized := make(map[string]struct{}, len(options))
	for _, opt := range options {
		normalized[strings.ToLower(strings.TrimSpace(opt))] = struct{}{}
	}
	for {
		fmt.Printf("%s (%s) [%s]: ", label, strings.Join(options, "/"), defaultValue)
		text, err := stdinReader.ReadString('\n')
		if err != nil {
			return "", err
		}
		text = strings.ToLower(strings.TrimSpace(text))
		if text == "" {
			text = strings.ToLower(strings.TrimSpace(defaultValue))
		}
		if _, ok := normalized[text]; ok {
			return text, nil
		}
		printWarn("Invalid option. Please pick one of the listed values.")
	}
}

func renderStatus(raw map[string]any) error {
	st, err := decodeInto[game.PublicState](raw)
	if err != nil {
		return err
	}
	phase := "day"
	if !st.IsDay {
		phase = "night"
	}
	timer := (time.Duration(st.TimeRemainingMS) * time.Millisecond).Round(time.Second).String()
	if !st.IsTimerRunning {
		timer += " (paused)"
	}
	accent.Printf("\n== TURN %d (%s) ==\n", st.Turn, phase)
	fmt.Printf("Next turn in: %s\n", timer)
	fmt.Printf("Economy:      %s, interest %s\n", st.Economy.Status, st.Economy.InterestRate.String())
	fmt.Printf("Weather:      %s, %d°C, %s\n", st.Environment.Weather, st.Environment.Temperature, st.Environment.Season)
	if d := st.Environment.Disaster; d != nil {
		danger.Printf("DISASTER:     %s (severity %d, %d turns left)\n", d.Kind, d.Severity, d.RemainingTurns)
	}

	if me := st.Me; me != nil {
		fmt.Println()
		accent.Printf("%s (%s)\n", me.Name, me.Role)
		fmt.Printf("Balance:  %s\n", coins(me.Balance))
		fmt.Printf("Savings:  %s\n", coins(me.Deposit))
		if me.Debt > 0 {
			fmt.Printf("Debt:     %s\n", danger.Sprint(coins(me.Debt)))
		}
		if me.Job != "" {
			fmt.Printf("Job:      %s\n", me.Job)
		}
		fmt.Printf("Happy:    %d  Popular: %d  Rating: %d\n", me.Happiness, me.Popularity, me.Rating)
		if me.Suspicion > 0 {
			warn.Printf("Suspicion: %d/%d\n", me.Suspicion, model.MaxSuspicion)
		}
		renderHoldings("Shares", me.Stocks)
		renderHoldings("Forbidden shares", me.ForbiddenStocks)
		if st.Unread > 0 {
			warn.Printf("You have %d unread message(s). Run `kmc message read`.\n", st.Unread)
		}
	}

	for _, c := range st.Calls {
		if c.Status == model.CallPending && st.Me != nil && c.ReceiverID == st.Me.ID {
			warn.Printf("Incoming call from %s (id %s)\n", c.CallerID, c.ID)
		}
	}
	for _, p := range st.Proposals {
		if p.Status == model.ProposalActive {
			fmt.Printf("Election: %q (id %s) closes %s\n", p.Title, p.ID, humanize.Time(p.Deadline))
		}
	}

	if len(st.News) > 0 {
		fmt.Println()
		accent.Println("News")
		limit := len(st.News)
		if limit > 5 {
			limit = 5
		}
		for _, n := range st.News[:limit] {
			fmt.Printf("  [%s] %s\n", n.Category, n.Headline)
		}
	}
	fmt.Println()
	return nil
}

func renderHoldings(title string, h map[string]int64) {
	if len(h) == 0 {
		return
	}
	ids := make([]string, 0, len(h))
	for id, qty := range h {
		if qty > 0 {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return
	}
	sort.Strings(ids)
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, fmt.Sprintf("%s×%d", id, h[id]))
	}
	fmt.Printf("%s: %s\n", title, strings.Join(parts, ", "))
}

func renderStocksList(raw map[string]any, title string) error {
	payload, err := decodeInto[stocksPayload](raw)
	if err != nil {
		return err
	}
	accent.Printf("\n== %s ==\n", title)
	if len(payload.Stocks) == 0 {
		printInfo("No stocks found.")
		return nil
	}
	fmt.Printf("%-8s %-24s %12s %10s\n", "ID", "NAME", "PRICE", "CHANGE")
	for _, s := range payload.Stocks {
		fmt.Printf("%-8s %-24s %12s %10s\n",
			s.ID,
			truncate(s.Name, 24),
			coins(s.Price),
			colorizeBps(s.ChangeBps),
		)
	}
	fmt.Println()
	return nil
}

func renderStockDetail(raw map[string]any) error {
	detail, err := decodeInto[game.StockDetail](raw)
	if err != nil {
		return err
	}
	accent.Printf("\n== %s (%s) ==\n", detail.ID, detail.Name)
	fmt.Printf("Price:      %s coins\n", coins(detail.Price))
	fmt.Printf("Change:     %s\n", colorizeBps(detail.ChangeBps))
	fmt.Printf("Volatility: %.0f%%\n", detail.Volatility*100)
	if len(detail.Series) > 1 {
		delta := detail.Series[0].Price - detail.Series[len(detail.Series)-1].Price
		fmt.Printf("Trend:      %s coins\n", colorizeCoins(delta))
	}
	if len(detail.Series) > 0 {
		fmt.Println()
		accent.Println("Recent prices")
		fmt.Printf("%-6s %-16s %12s\n", "TURN", "WHEN", "PRICE")
		limit := len(detail.Series)
		if limit > 8 {
			limit = 8
		}
		for _, p := range detail.Series[:limit] {
			fmt.Printf("%-6d %-16s %12s\n", p.Turn, humanize.Time(p.At), coins(p.Price))
		}
	}
	fmt.Println()
	return nil
}

func renderLands(raw map[string]any) error {
	st, err := decodeInto[game.PublicState](raw)
	if err != nil {
		return err
	}
	accent.Println("\n== LAND ==")
	fmt.Printf("%-12s %-10s %-20s %7s %12s %-10s\n", "ID", "KIND", "NAME", "X,Y", "PRICE", "STATUS")
	shown := 0
	for _, l := range st.Lands {
		if l.Status == model.LandDraft {
			continue
		}
		status := string(l.Status)
		if l.OwnerID != nil {
			status = "owner " + *l.OwnerID
		}
		fmt.Printf("%-12s %-10s %-20s %7s %12s %-10s\n",
			l.ID, l.Kind, truncate(l.Name, 20), fmt.Sprintf("%d,%d", l.X, l.Y), coins(l.Price), status)
		shown++
	}
	if shown == 0 {
		printInfo("No parcels on the map yet.")
	}
	fmt.Println()
	return nil
}

func renderMessages(raw map[string]any, me string) error {
	res, err := decodeInto[game.Result](raw)
	if err != nil {
		return err
	}
	accent.Println("\n== MESSAGES ==")
	if len(res.State.Messages) == 0 {
		printInfo("No messages.")
		return nil
	}
	for _, m := range res.State.Messages {
		who := "from " + m.From
		if m.From == me {
			who = "to " + m.To
		}
		fmt.Printf("%-14s %-20s %s\n", humanize.Time(m.SentAt), truncate(who, 20), m.Body)
	}
	fmt.Println()
	return nil
}

func renderLeaderboard(raw map[string]any) error {
	out, err := decodeInto[leaderboardPayload](raw)
	if err != nil {
		return err
	}
	accent.Println("\n== LEADERBOARD ==")
	if len(out.Rows) == 0 {
		printInfo("No players yet.")
		return nil
	}
	fmt.Printf("%-6s %-24s %14s\n", "RANK", "PLAYER", "NET WORTH")
	for _, row := range out.Rows {
		fmt.Printf("%-6d %-24s %14s\n", row.Rank, truncate(row.Name, 24), coins(row.NetWorth))
	}
	fmt.Println()
	return nil
}

func renderResult(raw map[string]any, done string) error {
	res, err := decodeInto[game.Result](raw)
	if err != nil {
		return err
	}
	msg := done
	if res.Receipt.Replayed {
		msg += " (already done earlier)"
	}
	printSuccess(msg)
	fmt.Printf("Balance %s  Savings %s  Debt %s\n", coins(res.Receipt.Balance), coins(res.Receipt.Deposit), coins(res.Receipt.Debt))
	return nil
}

func renderFrame(frame map[string]any) {
	kind, _ := frame["kind"].(string)
	text, _ := frame["text"].(string)
	stamp := time.Now().Format("15:04:05")
	switch frame["type"] {
	case "hello":
		printInfo(fmt.Sprintf("%s connected at revision %v", stamp, frame["revision"]))
		return
	}
	line := fmt.Sprintf("%s %-18s %s", stamp, kind, text)
	switch kind {
	case "disaster_started", "incoming_call":
		danger.Println(line)
	case "balance_changed", "request_decided":
		success.Println(line)
	case "unread_messages", "proposal_resolved":
		warn.Println(line)
	default:
		neutral.Println(line)
	}
}

func renderQueue(queue []syncq.Command) error {
	accent.Println("\n== OFFLINE QUEUE ==")
	if len(queue) == 0 {
		printInfo("Nothing queued.")
		return nil
	}
	for _, q := range queue {
		kind, _ := q.Body["kind"].(string)
		fmt.Printf("%-16s %-4s %-28s %s\n", humanize.Time(q.QueuedAt), q.Method, q.Path, kind)
	}
	fmt.Println()
	return nil
}

func receiptAmount(raw map[string]any) int64 {
	res, err := decodeInto[game.Result](raw)
	if err != nil {
		return 0
	}
	return res.Receipt.Amount
}

func decodeInto[T any](in any) (T, error) {
	var out T
	raw, err := json.Marshal(in)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, err
	}
	return out, nil
}

func coins(v int64) string {
	return humanize.Comma(v)
}

func colorizeCoins(v int64) string {
	text := coins(v)
	switch {
	case v > 0:
		return success.Sprint("+" + text)
	case v < 0:
		return danger.Sprint(text)
	default:
		return neutral.Sprint(text)
	}
}

func colorizeBps(v int64) string {
	text := fmt.Sprintf("%+.2f%%", float64(v)/100)
	switch {
	case v > 0:
		return success.Sprint(text)
	case v < 0:
		return danger.Sprint(text)
	default:
		return neutral.Sprint(text)
	}
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
