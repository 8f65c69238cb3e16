package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/balkonsolar/balkonsolar/pkg/log"
	"github.com/balkonsolar/balkonsolar/pkg/types"
	"github.com/levenlabs/go-lflag"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	collectionConfig        = "config"
	collectionDispatch      = "dispatch_history"
	collectionSchedules     = "schedules"
	collectionSolarForecast = "solar_forecast"
	collectionGridForecast  = "grid_forecast"
	collectionConsumption   = "consumption_history"
)

// FirestoreProvider implements the Database interface using Google Cloud
// Firestore. Every record lives under sites/{siteID} and is stored as a JSON
// string along with its timestamp.
type FirestoreProvider struct {
	client    *firestore.Client
	projectID string
	database  string
	siteID    string
}

// configuredFirestore sets up the Firestore provider.
// It registers flags for configuration.
func configuredFirestore() *FirestoreProvider {
	projectID := lflag.String("firestore-project-id", "", "Google Cloud Project ID for Firestore")
	database := lflag.String("firestore-database", "", "Google Cloud Firestore Database")
	emulator := lflag.String("firestore-emulator", "", "Use Firestore emulator")
	siteID := lflag.String("site-id", "balkon", "Site the battery and forecasts belong to")

	f := &FirestoreProvider{}

	lflag.Do(func() {
		f.projectID = *projectID
		f.database = *database
		f.siteID = *siteID

		// set this because that's how firestore client expects it
		if *emulator != "" {
			os.Setenv("FIRESTORE_EMULATOR_HOST", *emulator)
		}
	})

	return f
}

// Validate checks if the provider is properly configured.
func (f *FirestoreProvider) Validate() error {
	if f.siteID == "" {
		return fmt.Errorf("siteID cannot be empty")
	}
	return nil
}

// Init initializes the Firestore client.
// This must be called before using the provider methods.
func (f *FirestoreProvider) Init(ctx context.Context) error {
	projectID := f.projectID
	if projectID == "" {
		projectID = firestore.DetectProjectID
	}
	database := f.database
	if database == "" {
		database = firestore.DefaultDatabaseID
	}
	client, err := firestore.NewClientWithDatabase(ctx, projectID, database)
	if err != nil {
		return fmt.Errorf("failed to create firestore client (project=%s, database=%s): %w", projectID, database, err)
	}
	f.client = client
	return nil
}

// Close closes the Firestore client connection.
func (f *FirestoreProvider) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

func (f *FirestoreProvider) collection(name string) *firestore.CollectionRef {
	return f.client.Collection("sites").Doc(f.siteID).Collection(name)
}

func docID(ts time.Time) string {
	return ts.UTC().Format(time.RFC3339)
}

// decodeDoc unmarshals the "json" field of a document.
func decodeDoc[T any](ctx context.Context, doc *firestore.DocumentSnapshot, kind string) (T, error) {
	var v T
	val, err := doc.DataAt("json")
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "doc missing json", slog.String("kind", kind), slog.String("docID", doc.Ref.ID), slog.Any("err", err))
		return v, fmt.Errorf("%s document %s missing 'json' field: %w", kind, doc.Ref.ID, err)
	}
	jsonStr, ok := val.(string)
	if !ok {
		log.Ctx(ctx).WarnContext(ctx, "doc json not string", slog.String("kind", kind), slog.String("docID", doc.Ref.ID))
		return v, fmt.Errorf("%s document %s 'json' field is not string", kind, doc.Ref.ID)
	}
	if err := json.Unmarshal([]byte(jsonStr), &v); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to unmarshal doc", slog.String("kind", kind), slog.String("docID", doc.Ref.ID), slog.Any("err", err))
		return v, fmt.Errorf("failed to unmarshal %s (id=%s): %w", kind, doc.Ref.ID, err)
	}
	return v, nil
}

// setDoc stores v as JSON in the document keyed by the RFC3339 timestamp.
func setDoc(ctx context.Context, coll *firestore.CollectionRef, ts time.Time, v any, kind string) error {
	if ts.IsZero() {
		return fmt.Errorf("%s missing timestamp", kind)
	}
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", kind, err)
	}
	_, err = coll.Doc(docID(ts)).Set(ctx, map[string]interface{}{
		"json":      string(jsonBytes),
		"timestamp": ts,
	})
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", kind, err)
	}
	return nil
}

// queryRange returns the records in [start, end) using document ID range
// queries so only the matching documents are read.
func queryRange[T any](ctx context.Context, coll *firestore.CollectionRef, start, end time.Time, kind string) ([]T, error) {
	iter := coll.
		Where(firestore.DocumentID, ">=", coll.Doc(docID(start))).
		Where(firestore.DocumentID, "<", coll.Doc(docID(end))).
		OrderBy(firestore.DocumentID, firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	var records []T
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error iterating %s: %w", kind, err)
		}
		v, err := decodeDoc[T](ctx, doc, kind)
		if err != nil {
			return nil, err
		}
		records = append(records, v)
	}
	return records, nil
}

// queryLatest returns the most recent record or ErrNotFound.
func queryLatest[T any](ctx context.Context, coll *firestore.CollectionRef, kind string) (T, error) {
	var v T
	// firestore automatically creates indexes for top-level fields
	iter := coll.
		OrderBy("timestamp", firestore.Desc).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if err == iterator.Done {
		return v, fmt.Errorf("no %s: %w", kind, ErrNotFound)
	}
	if err != nil {
		return v, fmt.Errorf("failed to get latest %s doc: %w", kind, err)
	}
	return decodeDoc[T](ctx, doc, kind)
}

// GetSettings retrieves the dynamic configuration from the "config/settings" document.
func (f *FirestoreProvider) GetSettings(ctx context.Context) (types.Settings, int, error) {
	doc, err := f.collection(collectionConfig).Doc("settings").Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			// Return empty settings so the caller migrates from version 0
			return types.Settings{}, 0, nil
		}
		return types.Settings{}, 0, fmt.Errorf("failed to fetch settings doc: %w", err)
	}

	// Read version if available (default 0)
	var version int
	if v, err := doc.DataAt("version"); err == nil {
		if vInt, ok := v.(int64); ok {
			version = int(vInt)
		}
	}

	s, err := decodeDoc[types.Settings](ctx, doc, "settings")
	if err != nil {
		return types.Settings{}, 0, err
	}
	return s, version, nil
}

// SetSettings saves the dynamic configuration to the "config/settings" document.
// It stores the settings as a JSON string for portability.
func (f *FirestoreProvider) SetSettings(ctx context.Context, settings types.Settings, version int) error {
	jsonBytes, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	_, err = f.collection(collectionConfig).Doc("settings").Set(ctx, map[string]interface{}{
		"json":    string(jsonBytes),
		"version": version,
	})
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

// InsertDispatchRecord stores the result of a real-time tick.
func (f *FirestoreProvider) InsertDispatchRecord(ctx context.Context, record types.DispatchRecord) error {
	return setDoc(ctx, f.collection(collectionDispatch), record.Timestamp, record, "dispatch record")
}

// GetLatestDispatchRecord returns the most recent tick or nil if there is none.
func (f *FirestoreProvider) GetLatestDispatchRecord(ctx context.Context) (*types.DispatchRecord, error) {
	record, err := queryLatest[types.DispatchRecord](ctx, f.collection(collectionDispatch), "dispatch record")
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// GetDispatchHistory returns the ticks within [start, end).
func (f *FirestoreProvider) GetDispatchHistory(ctx context.Context, start, end time.Time) ([]types.DispatchRecord, error) {
	return queryRange[types.DispatchRecord](ctx, f.collection(collectionDispatch), start, end, "dispatch record")
}

// SetBatteryState saves the battery snapshot to the "config/battery" document.
func (f *FirestoreProvider) SetBatteryState(ctx context.Context, state types.BatteryState) error {
	jsonBytes, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal battery state: %w", err)
	}
	_, err = f.collection(collectionConfig).Doc("battery").Set(ctx, map[string]interface{}{
		"json":      string(jsonBytes),
		"timestamp": time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to save battery state: %w", err)
	}
	return nil
}

// GetBatteryState returns the last saved battery snapshot or ErrNotFound.
func (f *FirestoreProvider) GetBatteryState(ctx context.Context) (types.BatteryState, error) {
	doc, err := f.collection(collectionConfig).Doc("battery").Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return types.BatteryState{}, fmt.Errorf("battery state: %w", ErrNotFound)
		}
		return types.BatteryState{}, fmt.Errorf("failed to fetch battery doc: %w", err)
	}
	return decodeDoc[types.BatteryState](ctx, doc, "battery state")
}

// InsertSchedule stores a generated plan keyed by when it was generated.
func (f *FirestoreProvider) InsertSchedule(ctx context.Context, schedule types.Schedule) error {
	return setDoc(ctx, f.collection(collectionSchedules), schedule.GeneratedAt, schedule, "schedule")
}

// GetLatestSchedule returns the most recently generated plan or ErrNotFound.
func (f *FirestoreProvider) GetLatestSchedule(ctx context.Context) (types.Schedule, error) {
	return queryLatest[types.Schedule](ctx, f.collection(collectionSchedules), "schedule")
}

// UpsertSolarForecast adds or replaces the solar forecast for each sample's
// hour.
func (f *FirestoreProvider) UpsertSolarForecast(ctx context.Context, samples []types.SolarSample) error {
	coll := f.collection(collectionSolarForecast)
	for _, s := range samples {
		s.Timestamp = s.Timestamp.Truncate(time.Hour)
		if err := setDoc(ctx, coll, s.Timestamp, s, "solar forecast"); err != nil {
			return err
		}
	}
	return nil
}

// UpsertGridForecast adds or replaces the grid forecast for each sample's
// hour.
func (f *FirestoreProvider) UpsertGridForecast(ctx context.Context, samples []types.GridSample) error {
	coll := f.collection(collectionGridForecast)
	for _, s := range samples {
		s.Timestamp = s.Timestamp.Truncate(time.Hour)
		if err := setDoc(ctx, coll, s.Timestamp, s, "grid forecast"); err != nil {
			return err
		}
	}
	return nil
}

// UpsertConsumption adds or replaces the hourly consumption records.
func (f *FirestoreProvider) UpsertConsumption(ctx context.Context, stats []types.ConsumptionStats) error {
	coll := f.collection(collectionConsumption)
	for _, s := range stats {
		if err := setDoc(ctx, coll, s.TSHourStart, s, "consumption"); err != nil {
			return err
		}
	}
	return nil
}

// GetSolarForecast returns the solar forecast within [start, end).
func (f *FirestoreProvider) GetSolarForecast(ctx context.Context, start, end time.Time) ([]types.SolarSample, error) {
	return queryRange[types.SolarSample](ctx, f.collection(collectionSolarForecast), start.Truncate(time.Hour), end, "solar forecast")
}

// GetGridForecast returns the grid forecast within [start, end).
func (f *FirestoreProvider) GetGridForecast(ctx context.Context, start, end time.Time) ([]types.GridSample, error) {
	return queryRange[types.GridSample](ctx, f.collection(collectionGridForecast), start.Truncate(time.Hour), end, "grid forecast")
}

// GetConsumptionHistory returns the hourly consumption within [start, end).
func (f *FirestoreProvider) GetConsumptionHistory(ctx context.Context, start, end time.Time) ([]types.ConsumptionStats, error) {
	return queryRange[types.ConsumptionStats](ctx, f.collection(collectionConsumption), start.Truncate(time.Hour), end.Truncate(time.Hour), "consumption")
}
