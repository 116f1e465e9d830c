package services

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/authorizerdev/authorizer-go"
	"github.com/turnboard/turnflow/internal/config"
	"github.com/turnboard/turnflow/internal/utils"
)

var (
	authClient *authorizer.AuthorizerClient
	authMu     sync.Mutex
)

// Actor is the authenticated caller of a request: the identity recorded in
// the audit trail plus the roles the approval workflow authorizes against.
type Actor struct {
	ID    string
	Email string
	Roles []string
}

// IsAuthorizerInitialized returns true if the Authorizer client is initialized
func IsAuthorizerInitialized() bool {
	authMu.Lock()
	defer authMu.Unlock()
	return authClient != nil
}

// InitAuthorizer initializes the Authorizer client. A failed attempt (the
// service being down at startup) leaves the client unset so a later request
// retries.
func InitAuthorizer(cfg *config.Config, requestProtocol, requestHost string) error {
	authMu.Lock()
	defer authMu.Unlock()

	if authClient != nil {
		return nil
	}

	if err := utils.PingAuthorizer(cfg.AuthzURL); err != nil {
		return fmt.Errorf("authorizer ping failed: %w", err)
	}

	redirectURL := fmt.Sprintf("%s://%s", requestProtocol, requestHost)
	log.Printf("Initializing Authorizer: authorizerURL=%s, clientID=%s, redirectURL=%s",
		cfg.AuthzURL, cfg.AuthzClientID, redirectURL)

	client, err := authorizer.NewAuthorizerClient(cfg.AuthzClientID, cfg.AuthzURL, redirectURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create authorizer client: %w", err)
	}

	authClient = client
	return nil
}

// ValidateSession validates a session cookie and returns the actor it
// belongs to.
func ValidateSession(cookie string, roles []string) (*Actor, error) {
	authMu.Lock()
	client := authClient
	authMu.Unlock()
	if client == nil {
		return nil, fmt.Errorf("authorizer client not initialized")
	}

	rolesPtrs := make([]*string, len(roles))
	for i := range roles {
		rolesPtrs[i] = &roles[i]
	}

	res, err := client.ValidateSession(&authorizer.ValidateSessionInput{
		Cookie: cookie,
		Roles:  rolesPtrs,
	})
	if err != nil {
		return nil, fmt.Errorf("session validation failed: %w", err)
	}

	if res == nil || !res.IsValid {
		return nil, fmt.Errorf("session is not valid")
	}

	return actorFromUser(res.User)
}

// actorFromUser extracts id, email and roles from the SDK's user payload via
// a JSON round-trip; field shapes vary across authorizer versions.
func actorFromUser(user interface{}) (*Actor, error) {
	raw, err := json.Marshal(user)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session user: %w", err)
	}

	var decoded struct {
		ID    string      `json:"id"`
		Email string      `json:"email"`
		Roles interface{} `json:"roles"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode session user: %w", err)
	}
	if decoded.ID == "" {
		return nil, fmt.Errorf("session user has no id")
	}

	actor := &Actor{ID: decoded.ID, Email: decoded.Email}
	switch roles := decoded.Roles.(type) {
	case []interface{}:
		for _, r := range roles {
			if s, ok := r.(string); ok {
				actor.Roles = append(actor.Roles, s)
			}
		}
	case string:
		actor.Roles = append(actor.Roles, roles)
	}

	return actor, nil
}
