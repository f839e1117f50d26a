package server

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/mail"
	"time"

	"github.com/gorilla/mux"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/crypto/bcrypt"

	"scoutloot/internal/database"
	"scoutloot/internal/model"
)

func (s Server) userRegister() http.HandlerFunc {
	type request struct {
		Name          string `json:"name"`
		Email         string `json:"email"`
		Password      string `json:"password"`
		ShipToCountry string `json:"ship_to_country"`
		Timezone      string `json:"timezone"`
		DeviceID      string `json:"device_id"`
		FCMToken      string `json:"fcm_token"`
	}
	type response struct {
		Success    bool   `json:"success"`
		LoginToken string `json:"login_token"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		req := request{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.Logger.Debugf("userRegister: Error decoding JSON, err: %v", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		_, err := mail.ParseAddress(req.Email)
		if err != nil {
			s.Logger.Debugf("userRegister: Invalid email, err: %v", err)
			http.Error(w, "Invalid email", http.StatusBadRequest)
			return
		}
		if len(req.Password) < 8 {
			s.Logger.Debug("userRegister: Password too short")
			http.Error(w, "Password must be at least 8 characters", http.StatusBadRequest)
			return
		}
		password, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			s.Logger.Errorf("userRegister: Error generating bcrypt from password, err: %v", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		u := model.User{
			Name:          req.Name,
			Email:         req.Email,
			Password:      password,
			ShipToCountry: req.ShipToCountry,
			Timezone:      req.Timezone,
		}
		id, err := s.DB.UserInsert(r.Context(), u)
		if err != nil {
			if mongo.IsDuplicateKeyError(err) {
				s.Logger.Debugf("userRegister: Error duplicate key when inserting User, err: %v", err)
				http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
				return
			}
			s.Logger.Errorf("userRegister: Error inserting User, err: %v", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		lt, exp, tokenHash, err := s.createLoginTokenAndHash(id, req.DeviceID)
		if err != nil {
			s.Logger.Errorf("userRegister: Error creating login token for User, err: %v", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		d := model.Device{
			DeviceID: req.DeviceID,
			FCMToken: req.FCMToken,
			LoginToken: model.LoginToken{
				Token:      tokenHash,
				Expiration: primitive.NewDateTimeFromTime(exp),
				CreatedAt:  primitive.NewDateTimeFromTime(time.Now()),
			},
		}
		if err = s.DB.UserDeviceAdd(r.Context(), id, d); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				s.Logger.Debugf("userRegister: Error duplicate key when adding Device to User, err: %v", err)
				http.Error(w, "Invalid fcm_token", http.StatusBadRequest)
				return
			}
			s.Logger.Errorf("userRegister: Error adding Device to User, err: %v", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		s.writeJsonResponse(w, response{
			Success:    true,
			LoginToken: lt,
		}, http.StatusCreated)
	}
}

func (s Server) userLogin() http.HandlerFunc {
	type request struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		DeviceID string `json:"device_id"`
		FCMToken string `json:"fcm_token"`
	}
	type response struct {
		LoginToken string `json:"login_token"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		req := request{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.Logger.Debugf("userLogin: Error decoding JSON, err: %v", err)
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}

		u, err := s.DB.UserFindByEmail(r.Context(), req.Email)
		if err != nil {
			s.Logger.Debugf("userLogin: Error finding User, err: %v", err)
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		err = bcrypt.CompareHashAndPassword(u.Password, []byte(req.Password))
		if err != nil {
			s.Logger.Debugf("userLogin: Error comparing hash and password for User with email: %s, err: %v", u.Email, err)
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		lt, exp, tokenHash, err := s.createLoginTokenAndHash(u.ID.Hex(), req.DeviceID)
		if err != nil {
			s.Logger.Errorf("userLogin: Error creating login token for User, err: %v", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		var device *model.Device
		for _, d := range u.Devices {
			if d.DeviceID == req.DeviceID {
				device = &d
				break
			}
		}
		if device == nil {
			if err = s.DB.UserDeviceAdd(r.Context(), u.ID.Hex(), model.Device{
				DeviceID: req.DeviceID,
				LoginToken: model.LoginToken{
					Token:      tokenHash,
					Expiration: primitive.NewDateTimeFromTime(exp),
					CreatedAt:  primitive.NewDateTimeFromTime(time.Now()),
				},
				FCMToken: req.FCMToken,
			}); err != nil {
				if mongo.IsDuplicateKeyError(err) {
					s.Logger.Debugf("userLogin: Error duplicate key when adding Device to User, err: %v", err)
					http.Error(w, "Invalid fcm_token", http.StatusBadRequest)
					return
				}
				s.Logger.Errorf("userLogin: Error adding Device to User, err: %v", err)
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
		} else {
			device.LoginToken = model.LoginToken{
				Token:      tokenHash,
				Expiration: primitive.NewDateTimeFromTime(exp),
				CreatedAt:  primitive.NewDateTimeFromTime(time.Now()),
			}
			device.FCMToken = req.FCMToken
			device.LastSeen = primitive.NewDateTimeFromTime(time.Now())
			if err = s.DB.UserDeviceUpdate(r.Context(), u.ID.Hex(), *device); err != nil {
				if mongo.IsDuplicateKeyError(err) {
					s.Logger.Debugf("userLogin: Error duplicate key when updating Device on User, err: %v", err)
					http.Error(w, "Invalid fcm_token", http.StatusBadRequest)
					return
				}
				s.Logger.Errorf("userLogin: Error updating Device on User, err: %v", err)
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
		}
		s.writeJsonResponse(w, response{LoginToken: lt}, http.StatusOK)
	}
}

func (s Server) userLogout() http.HandlerFunc {
	type response struct {
		Success bool `json:"success"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		uc, err := getUserContext(r.Context())
		if err != nil {
			s.Logger.Errorf("userLogout: Error getting userContext, err: %v", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		if err = s.DB.UserDeviceTokensRemove(r.Context(), uc.user.ID.Hex(), uc.deviceID); err != nil {
			s.Logger.Errorf("userLogout: Error removing Device tokens, err: %v", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		s.writeJsonResponse(w, response{Success: true}, http.StatusOK)
	}
}

func (s Server) userInfo() http.HandlerFunc {
	type response struct {
		Name                    string `json:"name"`
		Email                   string `json:"email"`
		ShipToCountry           string `json:"ship_to_country"`
		Timezone                string `json:"timezone"`
		WeeklyDigestEnabled     bool   `json:"weekly_digest_enabled"`
		StillAvailableReminders bool   `json:"still_available_reminders"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		uc, err := getUserContext(r.Context())
		if err != nil {
			s.Logger.Errorf("userInfo: Error getting userContext, err: %v", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		s.writeJsonResponse(w, response{
			Name:                    uc.user.Name,
			Email:                   uc.user.Email,
			ShipToCountry:           uc.user.ShipToCountry,
			Timezone:                uc.user.Timezone,
			WeeklyDigestEnabled:     uc.user.WeeklyDigestEnabled,
			StillAvailableReminders: uc.user.StillAvailableReminders,
		}, http.StatusOK)
	}
}

func (s Server) userSettings() http.HandlerFunc {
	type response struct {
		Success bool `json:"success"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		uc, err := getUserContext(r.Context())
		if err != nil {
			s.Logger.Errorf("userSettings: Error getting userContext, err: %v", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		req := model.UserSettingsUpdate{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.Logger.Debugf("userSettings: Error decoding JSON, err: %v", err)
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}

		if err := s.DB.UserSettingsUpdate(r.Context(), uc.user.ID.Hex(), req); err != nil {
			if errors.Is(err, model.ErrValidation) {
				s.Logger.Debugf("userSettings: Invalid settings update, err: %v", err)
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			s.Logger.Errorf("userSettings: Error updating settings for UserID: %s, err: %v", uc.user.ID.Hex(), err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		s.writeJsonResponse(w, response{Success: true}, http.StatusOK)
	}
}

func (s Server) userForgotPassword() http.HandlerFunc {
	type request struct {
		Email string `json:"email"`
	}
	type response struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	// Internally "token issued" and "no such account" are distinct
	// outcomes, externally both collapse into the same generic response
	// so the endpoint cannot be used to probe for accounts.
	generic := response{
		Success: true,
		Message: "If an account exists, a reset link has been sent to your email.",
	}
	return func(w http.ResponseWriter, r *http.Request) {
		tid := getTraceContext(r.Context()).traceID
		req := request{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.Logger.Debugf("userForgotPassword: Error decoding JSON, err: %v", err)
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}

		u, err := s.DB.UserFindByEmail(r.Context(), req.Email)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				s.Logger.Debugf("userForgotPassword: No account for requested email, TraceID: %s", tid)
				s.writeJsonResponse(w, generic, http.StatusOK)
				return
			}
			s.Logger.Errorf("userForgotPassword: Error finding User, err: %v", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		rawToken, tokenHash, err := newResetToken()
		if err != nil {
			s.Logger.Errorf("userForgotPassword: Error generating reset token, err: %v", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		t := model.ResetToken{
			UserID:    u.ID,
			Email:     u.Email,
			TokenHash: tokenHash,
			IssuedAt:  primitive.NewDateTimeFromTime(time.Now()),
			ExpiresAt: primitive.NewDateTimeFromTime(time.Now().Add(s.TokenValidity)),
		}
		if err = s.DB.ResetTokenIssue(r.Context(), t); err != nil {
			s.Logger.Errorf("userForgotPassword: Error issuing ResetToken for UserID: %s, err: %v", u.ID.Hex(), err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		intent := model.NotificationIntent{
			UserID: u.ID.Hex(),
			Kind:   model.NotificationKindPasswordReset,
			Payload: map[string]string{
				"email":     u.Email,
				"reset_url": fmt.Sprintf("%s/?reset=%s", s.SiteURL, rawToken),
			},
		}
		if _, err = s.Client.TransportSendIntent(intent); err != nil {
			s.Logger.Errorf("userForgotPassword: Error sending reset intent for UserID: %s, err: %v", u.ID.Hex(), err)
		}
		s.writeJsonResponse(w, generic, http.StatusOK)
	}
}

func (s Server) userVerifyResetToken() http.HandlerFunc {
	type response struct {
		Valid bool   `json:"valid"`
		Email string `json:"email,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		rawToken := mux.Vars(r)["token"]

		// Read-only check, the token survives for the actual reset.
		t, err := s.DB.ResetTokenFindUsable(r.Context(), hashResetToken(rawToken))
		if err != nil {
			if errors.Is(err, database.ErrInvalidResetToken) {
				s.Logger.Debugf("userVerifyResetToken: Token not usable, TraceID: %s", getTraceContext(r.Context()).traceID)
				s.writeJsonResponse(w, response{Valid: false}, http.StatusOK)
				return
			}
			s.Logger.Errorf("userVerifyResetToken: Error finding ResetToken, err: %v", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		s.writeJsonResponse(w, response{Valid: true, Email: t.Email}, http.StatusOK)
	}
}

func (s Server) userResetPassword() http.HandlerFunc {
	type request struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	type response struct {
		Success bool   `json:"success"`
		Name    string `json:"name"`
		Email   string `json:"email"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		req := request{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.Logger.Debugf("userResetPassword: Error decoding JSON, err: %v", err)
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		if len(req.Password) < 8 {
			s.Logger.Debug("userResetPassword: Password too short")
			http.Error(w, "Password must be at least 8 characters", http.StatusBadRequest)
			return
		}

		passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			s.Logger.Errorf("userResetPassword: Error generating bcrypt from password, err: %v", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		u, err := s.DB.ResetTokenConsume(r.Context(), hashResetToken(req.Token), passwordHash)
		if err != nil {
			if errors.Is(err, database.ErrInvalidResetToken) {
				// Expired, consumed, superseded and unknown all read the
				// same from outside.
				s.Logger.Debugf("userResetPassword: Token not usable, TraceID: %s", getTraceContext(r.Context()).traceID)
				http.Error(w, "This reset link is invalid or has expired.", http.StatusUnprocessableEntity)
				return
			}
			s.Logger.Errorf("userResetPassword: Error consuming ResetToken, err: %v", err)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		s.Logger.Infof("userResetPassword: Password reset for UserID: %s", u.ID.Hex())
		s.writeJsonResponse(w, response{
			Success: true,
			Name:    u.Name,
			Email:   u.Email,
		}, http.StatusOK)
	}
}

func newResetToken() (raw string, hash []byte, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", nil, errors.Wrap(err, "error generating reset token")
	}
	raw = base64.RawURLEncoding.EncodeToString(buf)
	return raw, hashResetToken(raw), nil
}

func hashResetToken(raw string) []byte {
	h := sha256.Sum256([]byte(raw))
	return h[:]
}

func (s Server) createLoginTokenAndHash(userID string, deviceID string) (string, time.Time, []byte, error) {
	exp := time.Now().AddDate(0, 0, 90)
	salt := make([]byte, 128)
	if _, err := rand.Read(salt); err != nil {
		return "", exp, nil, errors.Wrapf(err, "error generating salt for login token for UserID: %s, DeviceID: %s", userID, deviceID)
	}
	t, err := jwt.NewBuilder().
		Subject(userID).
		Issuer("scoutloot-app").
		Expiration(exp).
		Claim("device", deviceID).
		Claim("s", base64.StdEncoding.EncodeToString(salt)).
		Build()
	if err != nil {
		return "", exp, nil, errors.Wrapf(err, "error creating login token for UserID: %s, DeviceID: %s", userID, deviceID)
	}
	lt, err := jwt.Sign(t, jwt.WithKey(jwa.HS256, s.AuthSecretKey))
	if err != nil {
		return "", exp, nil, errors.Wrapf(err, "error signing login token for UserID: %s, DeviceID: %s", userID, deviceID)
	}
	tokenHash := sha256.New()
	tokenHash.Write(lt)
	bcryptTokenHash, err := bcrypt.GenerateFromPassword(tokenHash.Sum(nil), bcrypt.DefaultCost-3)
	if err != nil {
		return "", exp, nil, errors.Wrapf(err, "error generating bcrypt from login token hash for UserID: %s, DeviceID: %s", userID, deviceID)
	}
	return string(lt), t.Expiration(), bcryptTokenHash, nil
}
