package storage

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/dgellow/yt-front/internal/audit"
	"github.com/dgellow/yt-front/internal/auth"
	"github.com/dgellow/yt-front/internal/crypto"
	"github.com/dgellow/yt-front/internal/log"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreStorage persists credentials and audit events in Google Cloud Firestore.
//
// Each identity owns exactly one credentials document; writes replace it
// wholesale with Set so concurrent refreshes resolve last-writer-wins.
// Access and refresh tokens are encrypted before they leave the process.
type FirestoreStorage struct {
	client                *firestore.Client
	projectID             string
	credentialsCollection string
	eventsCollection      string
	encryptor             crypto.Encryptor
}

// Ensure FirestoreStorage implements Storage interface
var _ Storage = (*FirestoreStorage)(nil)

// CredentialDoc represents a credentials document in Firestore
type CredentialDoc struct {
	Identity     string    `firestore:"identity"`
	Email        string    `firestore:"email,omitempty"`
	AccessToken  string    `firestore:"access_token"`            // Encrypted
	RefreshToken string    `firestore:"refresh_token,omitempty"` // Encrypted
	TokenType    string    `firestore:"token_type,omitempty"`
	Expiry       time.Time `firestore:"expiry"`
	Scopes       []string  `firestore:"scopes,omitempty"`
	UpdatedAt    time.Time `firestore:"updated_at"`
}

// NewFirestoreStorage creates a new Firestore storage instance
func NewFirestoreStorage(ctx context.Context, projectID, database, credentialsCollection, eventsCollection string, encryptor crypto.Encryptor) (*FirestoreStorage, error) {
	if encryptor == nil {
		return nil, fmt.Errorf("encryptor is required")
	}

	// Validate required parameters
	if projectID == "" {
		return nil, fmt.Errorf("projectID is required")
	}
	if credentialsCollection == "" {
		return nil, fmt.Errorf("credentials collection is required")
	}
	if eventsCollection == "" {
		return nil, fmt.Errorf("events collection is required")
	}

	var client *firestore.Client
	var err error

	// Firestore client with custom database
	if database != "" && database != "(default)" {
		client, err = firestore.NewClientWithDatabase(ctx, projectID, database)
	} else {
		client, err = firestore.NewClient(ctx, projectID)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	log.LogInfoWithFields("storage", "Connected to Firestore", map[string]any{
		"project":     projectID,
		"database":    database,
		"credentials": credentialsCollection,
		"events":      eventsCollection,
	})

	return &FirestoreStorage{
		client:                client,
		projectID:             projectID,
		credentialsCollection: credentialsCollection,
		eventsCollection:      eventsCollection,
		encryptor:             encryptor,
	}, nil
}

// Close closes the Firestore client
func (s *FirestoreStorage) Close() error {
	return s.client.Close()
}

// UpsertCredentials replaces the credentials document for identity
func (s *FirestoreStorage) UpsertCredentials(ctx context.Context, identity auth.Identity, rec *auth.TokenRecord) error {
	if rec == nil {
		return fmt.Errorf("token record cannot be nil")
	}
	if identity == "" {
		return fmt.Errorf("identity cannot be empty")
	}

	doc, err := encodeCredentials(identity, rec, s.encryptor)
	if err != nil {
		return err
	}

	if _, err := s.client.Collection(s.credentialsCollection).Doc(string(identity)).Set(ctx, doc); err != nil {
		return fmt.Errorf("failed to store credentials in Firestore: %w", err)
	}
	return nil
}

// FindCredentials loads and decrypts the credentials document for identity
func (s *FirestoreStorage) FindCredentials(ctx context.Context, identity auth.Identity) (*auth.TokenRecord, error) {
	snap, err := s.client.Collection(s.credentialsCollection).Doc(string(identity)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrCredentialsNotFound
		}
		return nil, fmt.Errorf("failed to get credentials from Firestore: %w", err)
	}

	var doc CredentialDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal credentials: %w", err)
	}
	return decodeCredentials(&doc, s.encryptor)
}

// RecordEvent stores an audit event under its ID
func (s *FirestoreStorage) RecordEvent(ctx context.Context, event audit.Event) error {
	if event.ID == "" {
		return fmt.Errorf("event ID cannot be empty")
	}
	if _, err := s.client.Collection(s.eventsCollection).Doc(event.ID).Set(ctx, event); err != nil {
		return fmt.Errorf("failed to store event in Firestore: %w", err)
	}
	return nil
}

// RecentEvents returns up to limit events for identity, newest first
func (s *FirestoreStorage) RecentEvents(ctx context.Context, identity auth.Identity, limit int) ([]audit.Event, error) {
	iter := s.client.Collection(s.eventsCollection).
		Where("identity", "==", string(identity)).
		OrderBy("timestamp", firestore.Desc).
		Limit(limit).
		Documents(ctx)
	defer iter.Stop()

	var events []audit.Event
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to iterate events: %w", err)
		}

		var event audit.Event
		if err := doc.DataTo(&event); err != nil {
			log.LogError("Failed to unmarshal event %s: %v", doc.Ref.ID, err)
			continue
		}
		events = append(events, event)
	}
	return events, nil
}

func encodeCredentials(identity auth.Identity, rec *auth.TokenRecord, enc crypto.Encryptor) (*CredentialDoc, error) {
	encryptedAccess, err := enc.Encrypt(rec.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt access token: %w", err)
	}

	doc := &CredentialDoc{
		Identity:    string(identity),
		Email:       rec.Email,
		AccessToken: encryptedAccess,
		TokenType:   rec.TokenType,
		Expiry:      rec.Expiry,
		Scopes:      rec.Scopes,
		UpdatedAt:   rec.UpdatedAt,
	}

	if rec.RefreshToken != "" {
		encryptedRefresh, err := enc.Encrypt(rec.RefreshToken)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt refresh token: %w", err)
		}
		doc.RefreshToken = encryptedRefresh
	}
	return doc, nil
}

func decodeCredentials(doc *CredentialDoc, enc crypto.Encryptor) (*auth.TokenRecord, error) {
	access, err := enc.Decrypt(doc.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt access token: %w", err)
	}

	rec := &auth.TokenRecord{
		Identity:    auth.Identity(doc.Identity),
		Email:       doc.Email,
		AccessToken: access,
		TokenType:   doc.TokenType,
		Expiry:      doc.Expiry,
		Scopes:      doc.Scopes,
		UpdatedAt:   doc.UpdatedAt,
	}

	if doc.RefreshToken != "" {
		refresh, err := enc.Decrypt(doc.RefreshToken)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt refresh token: %w", err)
		}
		rec.RefreshToken = refresh
	}
	return rec, nil
}
