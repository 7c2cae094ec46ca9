package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/peyvandapp/peyvand-backend/internal/config"
	"github.com/peyvandapp/peyvand-backend/internal/services"
)

// Shared pipeline services, wired once at boot.
var (
	cfg           *config.Config
	ruleStore     *services.RuleStore
	reportStore   *services.MongoReportStore
	userDirectory *services.PostgresUserDirectory
	notifier      *services.Notifier
	evaluator     *services.Evaluator
	sweeper       *services.Sweeper
)

// Init wires the handler package's services from the loaded config.
func Init(c *config.Config) {
	cfg = c
	ruleStore = services.NewRuleStore(c.RuleDefaults)
	reportStore = services.NewMongoReportStore()
	userDirectory = services.NewPostgresUserDirectory()

	push := services.NewRetryingPushSender(services.LogPushSender{}, c.PushRetries, c.PushTimeout)
	notifier = services.NewNotifier(userDirectory, push, services.NewRedisEventBus(), c.LookupTimeout)
	evaluator = services.NewEvaluator(ruleStore, reportStore, notifier, c.CountWindowDays)
	sweeper = services.NewSweeper(userDirectory, reportStore, c.SweepInterval)
}

// Sweeper exposes the wired sweeper for the boot goroutine.
func Sweeper() *services.Sweeper {
	return sweeper
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"success": false,
		"message": message,
	})
}

// serviceError maps the service sentinel errors onto HTTP statuses.
func serviceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrNotFound):
		writeError(w, http.StatusNotFound, "Not found")
	case errors.Is(err, services.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrConcurrency):
		writeError(w, http.StatusConflict, "The report was processed concurrently, fetch it again")
	default:
		writeError(w, http.StatusInternalServerError, "Internal error")
	}
}
