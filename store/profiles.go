package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"formautofill/models"
	"formautofill/utils"
)

const (
	profilePrefix = "profile:"
	domainPrefix  = "domain:"
)

// ProfileStore keeps profiles under "profile:<id>" keys.
type ProfileStore struct {
	kv     KV
	logger *utils.Logger
	now    func() time.Time
}

func NewProfileStore(kv KV, logger *utils.Logger) *ProfileStore {
	if logger == nil {
		logger = utils.GlobalLogger()
	}
	return &ProfileStore{kv: kv, logger: logger.Named("profile-store"), now: time.Now}
}

// Save writes the profile, assigning an id and creation time when missing
// and refreshing the update time. p is only updated once the write succeeded.
func (s *ProfileStore) Save(ctx context.Context, p *models.Profile) error {
	if p == nil || strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidProfile)
	}
	saved := *p
	if saved.ID == "" {
		saved.ID = uuid.NewString()
	}
	now := s.now().UnixMilli()
	if saved.CreatedAt == 0 {
		saved.CreatedAt = now
	}
	saved.UpdatedAt = now

	data, err := json.Marshal(&saved)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	if err := s.kv.Set(ctx, profilePrefix+saved.ID, data); err != nil {
		return err
	}
	*p = saved
	s.logger.Info("profile saved", map[string]interface{}{"id": p.ID})
	return nil
}

// Get returns the profile with the given id, or nil when there is none or
// the stored record does not have the profile shape. Errors are storage
// failures only.
func (s *ProfileStore) Get(ctx context.Context, id string) (*models.Profile, error) {
	data, err := s.kv.Get(ctx, profilePrefix+id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p, err := decodeProfile(data)
	if err != nil {
		s.logger.Warn("ignoring malformed profile", map[string]interface{}{"id": id, "error": err.Error()})
		return nil, nil
	}
	return p, nil
}

// Require is Get for callers that need the profile: a missing or malformed
// record is ErrNotFound.
func (s *ProfileStore) Require(ctx context.Context, id string) (*models.Profile, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("profile %s: %w", id, ErrNotFound)
	}
	return p, nil
}

// List returns every valid profile, skipping malformed records.
func (s *ProfileStore) List(ctx context.Context) ([]*models.Profile, error) {
	keys, err := s.kv.Keys(ctx, profilePrefix)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Profile, 0, len(keys))
	for _, k := range keys {
		data, err := s.kv.Get(ctx, k)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		p, err := decodeProfile(data)
		if err != nil {
			s.logger.Warn("skipping malformed profile", map[string]interface{}{"key": k, "error": err.Error()})
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// Exists reports whether any record, well formed or not, is stored under id.
func (s *ProfileStore) Exists(ctx context.Context, id string) (bool, error) {
	_, err := s.kv.Get(ctx, profilePrefix+id)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *ProfileStore) Delete(ctx context.Context, id string) error {
	return s.kv.Delete(ctx, profilePrefix+id)
}

// ExportAsText renders a profile as indented JSON.
func (s *ProfileStore) ExportAsText(ctx context.Context, id string) (string, error) {
	p, err := s.Require(ctx, id)
	if err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode profile: %w", err)
	}
	return string(data), nil
}

// ImportFromText parses an exported profile and saves it. The text must
// carry both an id and a name.
func (s *ProfileStore) ImportFromText(ctx context.Context, text string) (*models.Profile, error) {
	var p models.Profile
	if err := json.Unmarshal([]byte(text), &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProfile, err)
	}
	if p.ID == "" || p.Name == "" {
		return nil, fmt.Errorf("%w: missing id or name", ErrInvalidProfile)
	}
	if err := s.Save(ctx, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// decodeProfile checks the stored record has the profile shape before decoding it.
func decodeProfile(data []byte) (*models.Profile, error) {
	if err := validateShape(data); err != nil {
		return nil, err
	}
	var p models.Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProfile, err)
	}
	return &p, nil
}

func validateShape(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: not an object", ErrInvalidProfile)
	}
	for _, key := range []string{"id", "name"} {
		if jsonKind(raw[key]) != '"' {
			return fmt.Errorf("%w: %s must be a string", ErrInvalidProfile, key)
		}
	}
	for _, key := range []string{"personal", "custom"} {
		if k := jsonKind(raw[key]); k != '{' && k != 'n' {
			return fmt.Errorf("%w: %s must be an object", ErrInvalidProfile, key)
		}
	}
	for _, key := range []string{"experiences", "projects", "education", "skills"} {
		if k := jsonKind(raw[key]); k != '[' && k != 'n' {
			return fmt.Errorf("%w: %s must be a list", ErrInvalidProfile, key)
		}
	}
	return nil
}

// jsonKind returns the first byte of a JSON value, 'n' for null or missing.
func jsonKind(v json.RawMessage) byte {
	s := strings.TrimSpace(string(v))
	if s == "" || s == "null" {
		return 'n'
	}
	return s[0]
}

// DefaultProfile is the starter profile created on first run.
func DefaultProfile() *models.Profile {
	return &models.Profile{
		ID:   "name-profile",
		Name: "Default User Profile",
		Personal: models.PersonalInfo{
			FirstName: "Default",
			LastName:  "User",
			Email:     "default.user@example.com",
			Phone:     "+1-555-000-0000",
			City:      "San Francisco",
			State:     "CA",
			ZipCode:   "94105",
			Country:   "United States",
		},
		Skills: []string{},
		Custom: map[string]string{},
	}
}

// EnsureDefault saves DefaultProfile when the store holds no profile yet.
func (s *ProfileStore) EnsureDefault(ctx context.Context) (*models.Profile, bool, error) {
	existing, err := s.List(ctx)
	if err != nil {
		return nil, false, err
	}
	if len(existing) > 0 {
		return existing[0], false, nil
	}
	p := DefaultProfile()
	if err := s.Save(ctx, p); err != nil {
		return nil, false, err
	}
	return p, true, nil
}
