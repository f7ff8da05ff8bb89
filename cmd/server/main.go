package main

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"gridsiege.dev/internal/game"
	persistlog "gridsiege.dev/internal/persistence/log"
	"gridsiege.dev/internal/persistence/userdb"
	"gridsiege.dev/internal/sim/pattern"
	"gridsiege.dev/internal/sim/tuning"
	"gridsiege.dev/internal/transport/ws"
)

func main() {
	var (
		addr      = flag.String("addr", ":8080", "http listen address")
		configDir = flag.String("configs", "./configs", "config directory")
		dataDir   = flag.String("data", "./data", "runtime data directory")
		patternID = flag.Int("pattern", 0, "opening pattern id (0 = random within tuned difficulty range)")
		minDiff   = flag.Int("min_difficulty", 0, "override tuned minimum pattern difficulty (1-5)")
		maxDiff   = flag.Int("max_difficulty", 0, "override tuned maximum pattern difficulty (1-5)")
		seed      = flag.Int64("seed", time.Now().UnixNano(), "rng seed for pattern selection")
		disableDB = flag.Bool("disable_db", false, "disable the sqlite user store (auth endpoints return 503)")
		secretArg = flag.String("auth_secret", "", "session token hmac secret (or set GRIDSIEGE_AUTH_SECRET)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tunePath := filepath.Join(*configDir, "tuning.yaml")
	tune, err := tuning.Load(tunePath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Printf("tuning not found (%s); using defaults", tunePath)
			tune = tuning.Defaults()
		} else {
			logger.Fatalf("load tuning: %v", err)
		}
	}

	if *minDiff > 0 {
		tune.MinDifficulty = *minDiff
	}
	if *maxDiff > 0 {
		tune.MaxDifficulty = *maxDiff
	}
	if tune.MinDifficulty < 1 || tune.MaxDifficulty > 5 || tune.MinDifficulty > tune.MaxDifficulty {
		logger.Fatalf("difficulty range %d..%d invalid", tune.MinDifficulty, tune.MaxDifficulty)
	}

	catalog, err := pattern.Load(filepath.Join(*configDir, "patterns.yaml"))
	if err != nil {
		logger.Fatalf("load patterns: %v", err)
	}
	logger.Printf("loaded %d patterns (digest %.12s)", catalog.Len(), catalog.Digest)

	g, err := game.New(game.Config{
		Tuning:    tune,
		Catalog:   catalog,
		PatternID: *patternID,
		Seed:      *seed,
	}, logger)
	if err != nil {
		logger.Fatalf("game: %v", err)
	}
	logger.Printf("starting pattern=%q difficulty=%d", g.CurrentPattern().Name, g.CurrentPattern().Difficulty)

	roundLog := persistlog.NewRoundLogger(*dataDir)
	defer roundLog.Close()
	g.SetRoundLogger(roundLog)

	var users *userdb.Store
	if !*disableDB {
		users, err = userdb.Open(filepath.Join(*dataDir, "users.db"), authSecret(*secretArg, logger), 30*time.Minute)
		if err != nil {
			logger.Fatalf("open user store: %v", err)
		}
		defer users.Close()
	} else {
		logger.Printf("user store disabled (-disable_db)")
	}

	wsOpts := ws.Options{
		ClientQueue:   tune.ClientQueue,
		WriteDeadline: time.Duration(tune.WriteDeadlineSeconds) * time.Second,
	}
	if users != nil {
		wsOpts.VerifyToken = func(token string) bool {
			_, ok := users.VerifyToken(token)
			return ok
		}
	}
	wsSrv := ws.NewServer(g, logger, wsOpts)
	g.SetBroadcaster(wsSrv)

	ctx, cancel := signalContext()
	defer cancel()

	go func() {
		if err := g.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Printf("game loop stopped: %v", err)
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		m := g.Metrics()

		fmt.Fprintf(rw, "# HELP gridsiege_round Current round number.\n")
		fmt.Fprintf(rw, "# TYPE gridsiege_round gauge\n")
		fmt.Fprintf(rw, "gridsiege_round %d\n", m.Round)

		fmt.Fprintf(rw, "# HELP gridsiege_points_placed Attacker placements in the current run.\n")
		fmt.Fprintf(rw, "# TYPE gridsiege_points_placed gauge\n")
		fmt.Fprintf(rw, "gridsiege_points_placed %d\n", m.PointsPlaced)

		fmt.Fprintf(rw, "# HELP gridsiege_cells Live cell counts by faction.\n")
		fmt.Fprintf(rw, "# TYPE gridsiege_cells gauge\n")
		fmt.Fprintf(rw, "gridsiege_cells{faction=%q} %d\n", "defender", m.Defenders)
		fmt.Fprintf(rw, "gridsiege_cells{faction=%q} %d\n", "attacker", m.Attackers)

		fmt.Fprintf(rw, "# HELP gridsiege_game_over Whether the current run is finished.\n")
		fmt.Fprintf(rw, "# TYPE gridsiege_game_over gauge\n")
		fmt.Fprintf(rw, "gridsiege_game_over %d\n", boolToInt(m.Over))

		fmt.Fprintf(rw, "# HELP gridsiege_pattern_id Pattern id of the current run.\n")
		fmt.Fprintf(rw, "# TYPE gridsiege_pattern_id gauge\n")
		fmt.Fprintf(rw, "gridsiege_pattern_id %d\n", m.PatternID)

		fmt.Fprintf(rw, "# HELP gridsiege_clients Connected websocket clients.\n")
		fmt.Fprintf(rw, "# TYPE gridsiege_clients gauge\n")
		fmt.Fprintf(rw, "gridsiege_clients %d\n", wsSrv.ClientCount())

		fmt.Fprintf(rw, "# HELP gridsiege_step_ms Last round step duration in milliseconds.\n")
		fmt.Fprintf(rw, "# TYPE gridsiege_step_ms gauge\n")
		fmt.Fprintf(rw, "gridsiege_step_ms %.3f\n", m.StepMS)
	})
	mux.HandleFunc("/register", authHandler(users, func(u *userdb.Store, username, password string) (string, error) {
		return u.Register(username, password)
	}))
	mux.HandleFunc("/login", authHandler(users, func(u *userdb.Store, username, password string) (string, error) {
		return u.Login(username, password)
	}))
	mux.HandleFunc("/v1/ws", wsSrv.Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func authHandler(users *userdb.Store, op func(*userdb.Store, string, string) (string, error)) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if users == nil {
			http.Error(rw, "user store disabled", http.StatusServiceUnavailable)
			return
		}
		var creds credentials
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
			http.Error(rw, "bad request", http.StatusBadRequest)
			return
		}
		token, err := op(users, creds.Username, creds.Password)
		if err != nil {
			switch {
			case errors.Is(err, userdb.ErrUserExists):
				http.Error(rw, err.Error(), http.StatusBadRequest)
			case errors.Is(err, userdb.ErrBadCredentials):
				http.Error(rw, err.Error(), http.StatusUnauthorized)
			default:
				http.Error(rw, "internal error", http.StatusInternalServerError)
			}
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(map[string]string{
			"access_token": token,
			"token_type":   "bearer",
		})
	}
}

func authSecret(flagVal string, logger *log.Logger) []byte {
	s := strings.TrimSpace(flagVal)
	if s == "" {
		s = strings.TrimSpace(os.Getenv("GRIDSIEGE_AUTH_SECRET"))
	}
	if s != "" {
		return []byte(s)
	}
	// Ephemeral secret: tokens do not survive a restart.
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		logger.Fatalf("generate auth secret: %v", err)
	}
	logger.Printf("auth secret not configured; using ephemeral secret")
	return b
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
