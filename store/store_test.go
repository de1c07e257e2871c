package store

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"formautofill/database"
	"formautofill/models"
	"formautofill/utils"
)

func backends(t *testing.T) map[string]KV {
	t.Helper()
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	sqlite, err := NewSQLKV(context.Background(), db, DialectSQLite)
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })

	return map[string]KV{
		"memory": NewMemoryKV(0),
		"sqlite": sqlite,
	}
}

func TestKV_Contract(t *testing.T) {
	ctx := context.Background()
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := kv.Get(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, kv.Set(ctx, "profile:b", []byte("2")))
			require.NoError(t, kv.Set(ctx, "profile:a", []byte("1")))
			require.NoError(t, kv.Set(ctx, "domain:x", []byte("3")))
			require.NoError(t, kv.Set(ctx, "profile:a", []byte("one")))

			v, err := kv.Get(ctx, "profile:a")
			require.NoError(t, err)
			assert.Equal(t, "one", string(v))

			keys, err := kv.Keys(ctx, "profile:")
			require.NoError(t, err)
			assert.Equal(t, []string{"profile:a", "profile:b"}, keys)

			require.NoError(t, kv.Delete(ctx, "profile:a"))
			require.NoError(t, kv.Delete(ctx, "profile:a"))
			_, err = kv.Get(ctx, "profile:a")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestMemoryKV_Quota(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV(20)

	require.NoError(t, kv.Set(ctx, "k1", []byte("0123456789")))
	assert.ErrorIs(t, kv.Set(ctx, "k2", []byte("0123456789")), ErrQuotaExceeded)

	require.NoError(t, kv.Set(ctx, "k1", []byte("short")), "overwrites are charged the difference")
	require.NoError(t, kv.Set(ctx, "k2", []byte("12345")))
	require.NoError(t, kv.Delete(ctx, "k1"))
	require.NoError(t, kv.Set(ctx, "k3", []byte("12345")))
}

func TestProfileStore_SaveGetList(t *testing.T) {
	ctx := context.Background()
	s := NewProfileStore(NewMemoryKV(0), utils.NewNopLogger())

	p := &models.Profile{Name: "Ada", Personal: models.PersonalInfo{Email: "a@b.com"}}
	require.NoError(t, s.Save(ctx, p))
	assert.NotEmpty(t, p.ID)
	assert.NotZero(t, p.CreatedAt)
	assert.Equal(t, p.CreatedAt, p.UpdatedAt)

	got, err := s.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", got.Personal.Email)

	missing, err := s.Get(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
	_, err = s.Require(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, s.Delete(ctx, p.ID))
	list, err = s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestProfileStore_RejectsMalformedRecords(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV(0)
	s := NewProfileStore(kv, utils.NewNopLogger())

	records := map[string]string{
		"not-object": `[1,2]`,
		"no-name":    `{"id":"no-name","personal":{}}`,
		"bad-skills": `{"id":"bad-skills","name":"x","skills":"go"}`,
		"bad-custom": `{"id":"bad-custom","name":"x","custom":[]}`,
	}
	for id, raw := range records {
		require.NoError(t, kv.Set(ctx, profilePrefix+id, []byte(raw)))
		got, err := s.Get(ctx, id)
		require.NoError(t, err, id)
		assert.Nil(t, got, id)
	}
	require.NoError(t, kv.Set(ctx, profilePrefix+"ok", []byte(`{"id":"ok","name":"Fine","personal":{},"skills":null}`)))

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "ok", list[0].ID)
}

func TestProfileStore_QuotaExceeded(t *testing.T) {
	s := NewProfileStore(NewMemoryKV(10), utils.NewNopLogger())
	p := &models.Profile{Name: "Too big for ten bytes"}
	err := s.Save(context.Background(), p)
	assert.ErrorIs(t, err, ErrQuotaExceeded)
	assert.Empty(t, p.ID)
	assert.Zero(t, p.CreatedAt)
	assert.Zero(t, p.UpdatedAt)
}

func TestProfileStore_ExportImport(t *testing.T) {
	ctx := context.Background()
	s := NewProfileStore(NewMemoryKV(0), utils.NewNopLogger())
	p := &models.Profile{ID: "p1", Name: "Ada", Skills: []string{"Go"}, Custom: map[string]string{"visa": "none"}}
	require.NoError(t, s.Save(ctx, p))

	text, err := s.ExportAsText(ctx, "p1")
	require.NoError(t, err)
	assert.Contains(t, text, "\n  \"name\": \"Ada\"")

	require.NoError(t, s.Delete(ctx, "p1"))
	imported, err := s.ImportFromText(ctx, text)
	require.NoError(t, err)
	assert.Equal(t, "p1", imported.ID)
	assert.Equal(t, []string{"Go"}, imported.Skills)

	_, err = s.ImportFromText(ctx, `{"name":"no id"}`)
	assert.ErrorIs(t, err, ErrInvalidProfile)
	_, err = s.ImportFromText(ctx, `{"id":"x"}`)
	assert.ErrorIs(t, err, ErrInvalidProfile)
	_, err = s.ImportFromText(ctx, `not json`)
	assert.ErrorIs(t, err, ErrInvalidProfile)
}

func TestProfileStore_EnsureDefault(t *testing.T) {
	ctx := context.Background()
	s := NewProfileStore(NewMemoryKV(0), utils.NewNopLogger())

	p, created, err := s.EnsureDefault(ctx)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "name-profile", p.ID)

	_, created, err = s.EnsureDefault(ctx)
	require.NoError(t, err)
	assert.False(t, created)
}

func TestDomainMappingStore(t *testing.T) {
	ctx := context.Background()
	s := NewDomainMappingStore(NewMemoryKV(0))

	m, err := s.Get(ctx, "jobs.example.com")
	require.NoError(t, err)
	assert.Nil(t, m)

	m, err = s.Learn(ctx, "Jobs.Example.com", "#email", "personal.email")
	require.NoError(t, err)
	assert.NotZero(t, m.LastUsed)

	_, err = s.Learn(ctx, "jobs.example.com", "#phone", "personal.phone")
	require.NoError(t, err)

	got, err := s.Get(ctx, "jobs.example.com")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"#email": "personal.email", "#phone": "personal.phone"}, got.FieldMappings)

	require.NoError(t, s.Delete(ctx, "jobs.example.com"))
	got, err = s.Get(ctx, "jobs.example.com")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestS3Archive_Upload(t *testing.T) {
	var gotPath, gotBody, gotType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotType = r.Header.Get("Content-Type")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sess, err := session.NewSession(&aws.Config{
		Region:           aws.String("us-east-1"),
		Endpoint:         aws.String(server.URL),
		S3ForcePathStyle: aws.Bool(true),
		Credentials:      credentials.NewStaticCredentials("key", "secret", ""),
	})
	require.NoError(t, err)
	archive := NewS3ArchiveWithClient(s3.New(sess), S3Config{Bucket: "exports", Region: "us-east-1", Prefix: "profiles/"})

	url, err := archive.Upload(context.Background(), "p1.json", []byte(`{"id":"p1"}`), "application/json")

	require.NoError(t, err)
	assert.Equal(t, "/exports/profiles/p1.json", gotPath)
	assert.Equal(t, `{"id":"p1"}`, gotBody)
	assert.Equal(t, "application/json", gotType)
	assert.True(t, strings.Contains(url, "X-Amz-Signature"), url)
}

func TestS3ArchiveValidation(t *testing.T) {
	tests := []struct {
		name    string
		bucket  string
		region  string
		isValid bool
	}{
		{name: "valid configuration", bucket: "b", region: "us-east-1", isValid: true},
		{name: "missing bucket", region: "us-east-1"},
		{name: "missing region", bucket: "b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &S3Archive{bucket: tt.bucket, region: tt.region}
			err := a.validate()
			if tt.isValid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}

	_, err := NewS3Archive(S3Config{})
	assert.Error(t, err)
}
