package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/driftchat/driftchat-client/internal/api"
	"github.com/driftchat/driftchat-client/internal/app"
	"github.com/driftchat/driftchat-client/internal/config"
	"github.com/driftchat/driftchat-client/internal/core"
	"github.com/driftchat/driftchat-client/internal/imaging"
	"github.com/driftchat/driftchat-client/internal/log"
	"github.com/driftchat/driftchat-client/internal/store/sqlite"
	"github.com/driftchat/driftchat-client/internal/upload"
)

var (
	flagConfig   string
	flagServer   string
	flagLogLevel string
)

func main() {
	root := &cobra.Command{
		Use:          "driftchat",
		Short:        "Anonymous location-based chat client",
		SilenceUsage: true,
		RunE:         runChat,
	}
	root.PersistentFlags().StringVar(&flagConfig, "config", "", "path to the client config file")
	root.PersistentFlags().StringVar(&flagServer, "server", "", "override the configured server URL")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "override the configured log level")

	store := &cobra.Command{
		Use:   "store [amount]",
		Short: "Buy points through the point store",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runStore,
	}

	history := &cobra.Command{
		Use:   "history",
		Short: "Show archived chat transcripts",
		RunE:  runHistory,
	}
	history.Flags().Int("limit", 10, "number of transcripts to show")

	compress := &cobra.Command{
		Use:   "compress <path>",
		Short: "Compress an image against the upload budget without sending it",
		Args:  cobra.ExactArgs(1),
		RunE:  runCompress,
	}

	root.AddCommand(store, history, compress)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (config.Config, string, error) {
	logger := log.New(flagLogLevel)
	cfg, path, err := config.Load(logger, flagConfig)
	if err != nil {
		return config.Config{}, "", err
	}
	if flagServer != "" {
		cfg.ServerURL = flagServer
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	return cfg, path, nil
}

func runChat(cmd *cobra.Command, _ []string) error {
	cfg, cfgPath, err := loadConfig()
	if err != nil {
		return err
	}
	logger := log.New(cfg.LogLevel)

	application, err := app.New(cfg, cfgPath, logger)
	if err != nil {
		return err
	}
	session := application.Session()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	appDone := make(chan error, 1)
	go func() { appDone <- application.Run(ctx) }()

	printerDone := make(chan struct{})
	go func() {
		defer close(printerDone)
		for ev := range session.Events() {
			printEvent(ev)
		}
	}()

	fmt.Println("driftchat (type /help for commands)")
	session.Connect()

	go readInput(ctx, cancel, application)

	err = <-appDone
	<-printerDone
	return err
}

// readInput turns stdin lines into session commands. Plain lines are chat
// messages; slash commands drive everything else.
func readInput(ctx context.Context, quit context.CancelFunc, application *app.App) {
	session := application.Session()
	scanner := bufio.NewScanner(os.Stdin)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "/") {
			session.SendMessage(line)
			continue
		}

		fields := strings.Fields(line)
		switch fields[0] {
		case "/help":
			printHelp()
		case "/connect":
			session.Connect()
		case "/disconnect":
			session.Disconnect()
		case "/queue":
			session.JoinQueue()
		case "/end":
			session.EndChat()
		case "/prefs":
			gender, distance, err := parsePreference(fields[1:])
			if err != nil {
				fmt.Println("! " + err.Error())
				continue
			}
			session.SavePreferences(gender, distance)
		case "/activate":
			gender, distance, err := parsePreference(fields[1:])
			if err != nil {
				fmt.Println("! " + err.Error())
				continue
			}
			session.ActivatePreference(gender, distance)
		case "/image":
			if len(fields) < 2 {
				fmt.Println("! usage: /image <path>")
				continue
			}
			path := strings.TrimSpace(strings.TrimPrefix(line, "/image"))
			go func() {
				_ = application.Uploads().Send(ctx, session.ClientID(), path)
			}()
		case "/location":
			if len(fields) != 3 {
				fmt.Println("! usage: /location <latitude> <longitude>")
				continue
			}
			lat, latErr := strconv.ParseFloat(fields[1], 64)
			lon, lonErr := strconv.ParseFloat(fields[2], 64)
			if latErr != nil || lonErr != nil {
				fmt.Println("! latitude and longitude must be numbers")
				continue
			}
			session.UpdateLocation(lat, lon)
		case "/gender":
			if len(fields) != 2 {
				fmt.Println("! usage: /gender <male|female>")
				continue
			}
			session.UpdateGender(fields[1])
		case "/status":
			printStatus(session.Snapshot())
		case "/quit":
			quit()
			return
		default:
			fmt.Printf("! unknown command %s (try /help)\n", fields[0])
		}
	}
	quit()
}

func parsePreference(args []string) (string, int, error) {
	if len(args) != 2 {
		return "", 0, errors.New("usage: <gender> <max-distance-km, 0 = unlimited>")
	}
	distance, err := strconv.Atoi(args[1])
	if err != nil || distance < 0 {
		return "", 0, errors.New("max distance must be a non-negative integer")
	}
	return args[0], distance, nil
}

func printEvent(ev core.Event) {
	switch ev.Kind {
	case core.EventMessageAppended:
		printMessage(ev.Message)
	case core.EventStateChanged:
		fmt.Printf("-- %s / %s\n", ev.Connection, ev.Match)
	case core.EventHistoryCleared:
		fmt.Println("----------------------------------------")
	case core.EventEntitlementUpdated:
		if until := ev.Entitlement.PreferenceActiveUntil; until != nil {
			fmt.Printf("-- points: %d, preference active until %s\n",
				ev.Entitlement.Points, until.Local().Format(time.Kitchen))
		} else {
			fmt.Printf("-- points: %d\n", ev.Entitlement.Points)
		}
	case core.EventNotice:
		fmt.Println("! " + ev.Notice)
	}
}

func printMessage(m core.ChatMessage) {
	stamp := m.Timestamp.Local().Format("15:04")
	switch m.Origin {
	case core.OriginSelf:
		fmt.Printf("[%s] you: %s\n", stamp, m.Content)
	case core.OriginPeer:
		fmt.Printf("[%s] them: %s\n", stamp, m.Content)
	default:
		fmt.Printf("[%s] * %s\n", stamp, m.Content)
	}
	if m.IsImage() {
		fmt.Printf("       image: %s\n", m.ImageURL)
	}
}

func printStatus(snap core.Snapshot) {
	fmt.Printf("-- connection: %s, match: %s\n", snap.Connection, snap.Match)
	fmt.Printf("-- preference: %s, max distance: %d km\n", snap.PreferredGender, snap.MaxDistanceKm)
	fmt.Printf("-- points: %d\n", snap.Entitlement.Points)
	if snap.Match == core.MatchActive {
		fmt.Printf("-- partner: %s, %.1f km away\n", snap.PartnerGender, snap.PartnerDistance)
	}
}

func printHelp() {
	fmt.Print(`commands:
  /queue                     join the matching queue
  /end                       end the current chat
  /prefs <gender> <km>       save matching preference (0 km = unlimited)
  /activate <gender> <km>    spend points to activate a preference window
  /image <path>              send an image to your partner
  /location <lat> <lon>      update your position
  /gender <male|female>      update your own gender
  /status                    show session state
  /connect, /disconnect      manage the server connection
  /quit                      exit
anything else is sent as a chat message
`)
}

func runStore(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		fmt.Print(`point packages:
   1000 points
   5000 points
  10000 points
run "driftchat store <amount>" to buy
`)
		return nil
	}

	amount, err := strconv.Atoi(args[0])
	if err != nil || amount <= 0 {
		return errors.New("amount must be a positive integer")
	}

	cfg, cfgPath, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.ClientID == "" {
		return errors.New("no client identity yet; run the chat once to register")
	}
	logger := log.New(cfg.LogLevel)

	client := api.New(cfg.ServerURL, logger)
	points, err := client.ChargePoints(cmd.Context(), cfg.ClientID, amount)
	if err != nil {
		return err
	}

	cfg.Points = points
	if err := config.Save(cfgPath, cfg); err != nil {
		logger.Warn().Err(err).Msg("config save failed")
	}
	fmt.Printf("balance: %d points\n", points)
	return nil
}

func runCompress(_ *cobra.Command, args []string) error {
	logger := log.New(flagLogLevel)
	c := &imaging.Compressor{Budget: upload.DefaultBudget, Log: logger}

	res, err := c.Compress(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("%s (%d bytes, quality %d, %d passes)\n", res.Path, res.Size, res.Quality, res.Passes)
	return nil
}

func runHistory(cmd *cobra.Command, _ []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	limit, _ := cmd.Flags().GetInt("limit")

	st, err := sqlite.New(cfg.ArchivePath)
	if err != nil {
		return err
	}
	defer st.Close()

	archived, err := st.ListTranscripts(cmd.Context(), limit)
	if err != nil {
		return err
	}
	if len(archived) == 0 {
		fmt.Println("no archived chats")
		return nil
	}
	for _, a := range archived {
		fmt.Printf("%s  %s partner, %.1f km, %d messages (%s)\n",
			a.Transcript.StartedAt.Local().Format("2006-01-02 15:04"),
			a.Transcript.PartnerGender,
			a.Transcript.DistanceKm,
			len(a.Transcript.Messages),
			a.ID[:8])
	}
	return nil
}
