// cmd/notifier/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"school-notifier/internal/api"
	"school-notifier/internal/common/cache"
	"school-notifier/internal/common/config"
	apperrors "school-notifier/internal/common/errors"
	"school-notifier/internal/common/logger"
	"school-notifier/internal/models"
	"school-notifier/internal/notify"
	"school-notifier/internal/transport"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("starting notifier",
		zap.String("app", cfg.App.Name),
		zap.String("environment", cfg.App.Environment),
	)

	// Session identity comes from the host application.
	userID := os.Getenv("NOTIFIER_USER_ID")
	token := os.Getenv("NOTIFIER_TOKEN")
	scopeID := os.Getenv("NOTIFIER_SCOPE_ID")
	role := os.Getenv("NOTIFIER_ROLE")
	if role == "" {
		role = models.RoleStudent
	}

	ctx := context.Background()

	// --- Optional snapshot cache ---
	var snapshotCache *cache.RedisCache
	if cfg.Cache.Enabled {
		err = retryWithBackoff(func() error {
			var err error
			snapshotCache, err = cache.NewRedis(cfg.Cache)
			if err != nil {
				return err
			}
			return snapshotCache.Ping(ctx)
		}, 5, 2*time.Second, zapLog, "Redis snapshot cache connection")

		if err != nil {
			// Cache is a comfort feature, not a dependency.
			zapLog.Warn("snapshot cache unavailable, continuing without it",
				zap.Error(apperrors.NewCacheUnavailableError(err)))
			snapshotCache = nil
		} else {
			defer snapshotCache.Close()
			zapLog.Info("snapshot cache connected")
		}
	}

	// --- Persistence sync client ---
	apiClient := api.NewClient(cfg.API.BaseURL, token, &http.Client{Timeout: cfg.API.TimeoutDuration()})

	// --- Store, bus and presentation sinks ---
	store := notify.NewStore(cfg.Notifications.MaxStored, cfg.Notifications.DedupWindowDuration(), apiClient, log)
	store.SetScope(scopeID)
	store.OnPersistFailure(func(operation string, err error) {
		fields := map[string]interface{}{
			"operation": operation,
			"error":     err.Error(),
			"retryable": apperrors.IsRetryable(err),
		}
		var stdErr *apperrors.StandardError
		if errors.As(err, &stdErr) {
			fields["category"] = apperrors.GetErrorCategory(stdErr.Code)
		}
		log.Warn("persistence sync failed, local state stands", fields)
	})
	if snapshotCache != nil {
		store.AttachCache(snapshotCache)
		store.LoadFromCache(ctx)
	}

	bus := notify.NewBus(log)
	bus.Subscribe(notify.TopicToast, func(payload interface{}) {
		toast, ok := payload.(notify.ToastEvent)
		if !ok {
			return
		}
		log.Info("toast", map[string]interface{}{
			"severity": toast.Severity,
			"title":    toast.Notification.Title,
			"message":  toast.Notification.Message,
		})
	})

	navigate := func(path string) {
		log.Info("navigate", map[string]interface{}{"path": path})
	}

	store.AttachSinks(
		notify.NewDesktopSink(notify.LogNotifier{Log: log}, cfg.Notifications.DesktopDismissDuration(), role, navigate, log),
		notify.NewToastSink(bus),
		notify.NewBusSink(bus),
	)

	// --- Transport connector ---
	connector, err := transport.NewConnector(cfg.Transport, log)
	if err != nil {
		zapLog.Fatal("connector init failed", zap.Error(err))
	}

	// One subscription per narrow push event, plus the generic one: the
	// event name supplies the default type during normalization.
	admit := func(eventName string) transport.HandlerFunc {
		return func(payload map[string]interface{}) {
			store.Admit(notify.Normalize(eventName, payload))
		}
	}
	for _, eventName := range models.KnownTypes() {
		connector.On(eventName, admit(eventName))
	}
	connector.On("notification", admit("notification"))

	connector.On(transport.EventAuthenticated, func(payload map[string]interface{}) {
		if v, ok := payload["scopeId"].(string); ok && v != "" {
			scopeID = v
			store.SetScope(v)
		}
		connector.Join("scope:" + scopeID)
		connector.Join("user:" + userID)

		go func() {
			fetchCtx, cancel := context.WithTimeout(context.Background(), cfg.API.TimeoutDuration())
			defer cancel()
			_ = store.SyncFromServer(fetchCtx)
		}()
	})

	connector.On(transport.EventAuthError, func(payload map[string]interface{}) {
		// Rejected credentials end the session: clear local state and wait
		// for the host to re-connect with fresh credentials.
		log.Error("clearing session after credential rejection", map[string]interface{}{
			"payload": payload,
		})
		store.Clear()
	})

	connector.On(transport.EventDisconnected, func(payload map[string]interface{}) {
		// Cached notifications keep displaying; this is a passive indicator.
		log.Warn("push channel disconnected", map[string]interface{}{
			"reason": payload["reason"],
		})
	})

	err = retryWithBackoff(func() error {
		return connector.Connect(userID, token)
	}, 5, 2*time.Second, zapLog, "push channel connection")
	if err != nil {
		zapLog.Fatal("push channel failed after retries", zap.Error(err))
	}

	// --- Metrics and health endpoints ---
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		state := connector.State()
		w.Header().Set("Content-Type", "application/json")
		if state.Status != models.StatusConnected {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status":      state.Status,
			"lastError":   state.LastError,
			"unreadCount": store.UnreadCount(),
			"stored":      store.Len(),
		})
	})

	srv := &http.Server{Addr: cfg.App.MetricsAddr, Handler: mux}
	go func() {
		zapLog.Info("metrics endpoint listening", zap.String("addr", cfg.App.MetricsAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Error("metrics server stopped", zap.Error(err))
		}
	}()

	// --- Wait for shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	zapLog.Info("shutting down", zap.String("signal", sig.String()))

	connector.Disconnect()
	store.Clear()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
