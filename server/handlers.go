package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/habitloop/habitloop/lib/utils"
	"github.com/habitloop/habitloop/models"
	"github.com/habitloop/habitloop/server/analytics"
	"github.com/habitloop/habitloop/server/auth"
	contextKey "github.com/habitloop/habitloop/server/context_key"
	"github.com/habitloop/habitloop/server/habits"
)

// principalFrom returns the Principal the authorization middleware stored in
// the request context.
func principalFrom(r *http.Request) (models.Principal, bool) {
	principal, ok := r.Context().Value(contextKey.PrincipalKey).(models.Principal)
	return principal, ok
}

// serviceError maps a service failure onto its fixed status code and
// caller-safe message. Unrecognized errors are logged with their full detail
// and collapsed to a generic 500 so no storage internals leak to the caller.
func serviceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, auth.ErrInvalidCredentials.Error())
	case errors.Is(err, auth.ErrEmailTaken):
		writeError(w, http.StatusConflict, auth.ErrEmailTaken.Error())
	case errors.Is(err, auth.ErrUserNotFound):
		writeError(w, http.StatusNotFound, auth.ErrUserNotFound.Error())
	case errors.Is(err, habits.ErrHabitNotFound):
		writeError(w, http.StatusNotFound, habits.ErrHabitNotFound.Error())
	default:
		log.Printf("internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type habitRequest struct {
	Name            string `json:"name"`
	Description     string `json:"description"`
	TargetFrequency int    `json:"target_frequency"`
}

type logRequest struct {
	HabitID   string `json:"habit_id"`
	Date      string `json:"date"`
	Completed bool   `json:"completed"`
}

// authPayload is the response body of register and login.
type authPayload struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

func registerHandler(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" || req.Email == "" || req.Password == "" || req.Role == "" {
		writeError(w, http.StatusBadRequest, "all fields are required")
		return
	}
	if !utils.ValidateEmail(req.Email) {
		writeError(w, http.StatusBadRequest, "invalid email format")
		return
	}
	if !utils.ValidatePassword(req.Password) {
		writeError(w, http.StatusBadRequest, "password must be at least 8 characters and contain both letters and numbers")
		return
	}

	user, token, err := auth.SignUp(r.Context(), req.Name, req.Email, req.Password, req.Role)
	if err != nil {
		serviceError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, authPayload{User: user, Token: token})
}

func loginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	user, token, err := auth.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		serviceError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, authPayload{User: user, Token: token})
}

// logoutHandler acknowledges a logout. Tokens are stateless and expire on
// their own; there is nothing to invalidate server-side.
func logoutHandler(w http.ResponseWriter, r *http.Request) {
	writeMessage(w, http.StatusOK, "logged out")
}

func currentUserHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := auth.CurrentUser(r.Context(), principal)
	if err != nil {
		serviceError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, user)
}

func listHabitsHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	habitList, err := habits.ListHabits(r.Context(), principal)
	if err != nil {
		serviceError(w, err)
		return
	}
	if habitList == nil {
		habitList = []models.Habit{}
	}

	writeSuccess(w, http.StatusOK, habitList)
}

func createHabitHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req habitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || req.TargetFrequency <= 0 {
		writeError(w, http.StatusBadRequest, "name and target frequency are required")
		return
	}

	habit, err := habits.CreateHabit(r.Context(), principal, req.Name, req.Description, req.TargetFrequency)
	if err != nil {
		serviceError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, habit)
}

func updateHabitHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req habitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" || req.TargetFrequency <= 0 {
		writeError(w, http.StatusBadRequest, "name and target frequency are required")
		return
	}

	habit, err := habits.UpdateHabit(r.Context(), principal, mux.Vars(r)["id"], req.Name, req.Description, req.TargetFrequency)
	if err != nil {
		serviceError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, habit)
}

func deleteHabitHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := habits.DeleteHabit(r.Context(), principal, mux.Vars(r)["id"]); err != nil {
		serviceError(w, err)
		return
	}

	writeMessage(w, http.StatusOK, "habit deleted")
}

func upsertLogHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req logRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.HabitID == "" {
		writeError(w, http.StatusBadRequest, "habit_id is required")
		return
	}
	if !utils.ValidateDate(req.Date) {
		writeError(w, http.StatusBadRequest, "date must be of the form YYYY-MM-DD")
		return
	}

	dailyLog, created, err := habits.LogCompletion(r.Context(), principal, req.HabitID, req.Date, req.Completed)
	if err != nil {
		serviceError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeSuccess(w, status, dailyLog)
}

func todayLogsHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	logs, err := habits.TodayLogs(r.Context(), principal)
	if err != nil {
		serviceError(w, err)
		return
	}
	if logs == nil {
		logs = []models.DailyLog{}
	}

	writeSuccess(w, http.StatusOK, logs)
}

func analyticsHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := principalFrom(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	snapshot, err := analytics.CurrentSnapshot(r.Context(), principal)
	if err != nil {
		serviceError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, snapshot)
}
