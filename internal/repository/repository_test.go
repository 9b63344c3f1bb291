package repository

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/opensource-finance/perch/internal/domain"
	"github.com/shopspring/decimal"
)

func newTestRepo(t *testing.T) *SQLRepository {
	t.Helper()

	repo, err := New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "perch-test.db"),
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSQLiteRepository(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	tenantID := "tenant-001"

	t.Run("Ping", func(t *testing.T) {
		if err := repo.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})

	t.Run("SaveAndGetRecord", func(t *testing.T) {
		override := 45
		lastCancel := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
		rec := &domain.ClientReliabilityRecord{
			ClientID:                        "client-001",
			TotalAppointments:               10,
			TotalCancellations:              4,
			TotalNoShows:                    1,
			ConsecutiveCancellations:        2,
			LastCancellationDate:            &lastCancel,
			CustomDepositOverridePercentage: &override,
		}

		if err := repo.SaveRecord(ctx, tenantID, rec); err != nil {
			t.Fatalf("SaveRecord failed: %v", err)
		}

		got, err := repo.GetRecord(ctx, tenantID, "client-001")
		if err != nil {
			t.Fatalf("GetRecord failed: %v", err)
		}
		if got.TotalCancellations != 4 || got.ConsecutiveCancellations != 2 {
			t.Errorf("unexpected counters: %+v", got)
		}
		if got.CustomDepositOverridePercentage == nil || *got.CustomDepositOverridePercentage != 45 {
			t.Error("expected override 45")
		}
		if got.ReliabilityScore != nil {
			t.Error("expected no cached score")
		}
		if got.LastCancellationDate == nil || !got.LastCancellationDate.Equal(lastCancel) {
			t.Errorf("expected last cancellation %v, got %v", lastCancel, got.LastCancellationDate)
		}
		if got.UpdatedAt.IsZero() {
			t.Error("expected updatedAt to be set")
		}
	})

	t.Run("UpsertRecord", func(t *testing.T) {
		rec := &domain.ClientReliabilityRecord{ClientID: "client-001", TotalAppointments: 11, TotalCancellations: 4}
		if err := repo.SaveRecord(ctx, tenantID, rec); err != nil {
			t.Fatalf("SaveRecord failed: %v", err)
		}

		got, _ := repo.GetRecord(ctx, tenantID, "client-001")
		if got.TotalAppointments != 11 {
			t.Errorf("expected 11 appointments, got %d", got.TotalAppointments)
		}
		if got.CustomDepositOverridePercentage != nil {
			t.Error("override should be cleared by the new snapshot")
		}
	})

	t.Run("RecordNotFound", func(t *testing.T) {
		_, err := repo.GetRecord(ctx, tenantID, "nobody")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		if !errors.Is(err, domain.ErrNotFound) {
			t.Error("repository ErrNotFound must match domain.ErrNotFound")
		}
	})

	t.Run("ListRecords", func(t *testing.T) {
		_ = repo.SaveRecord(ctx, tenantID, &domain.ClientReliabilityRecord{ClientID: "client-000"})

		records, err := repo.ListRecords(ctx, tenantID)
		if err != nil {
			t.Fatalf("ListRecords failed: %v", err)
		}
		if len(records) != 2 {
			t.Fatalf("expected 2 records, got %d", len(records))
		}
		if records[0].ClientID != "client-000" {
			t.Errorf("expected ordering by client id, got %s first", records[0].ClientID)
		}
	})

	t.Run("TenantIsolation", func(t *testing.T) {
		if _, err := repo.GetRecord(ctx, "tenant-002", "client-001"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound for other tenant, got %v", err)
		}

		records, err := repo.ListRecords(ctx, "tenant-002")
		if err != nil {
			t.Fatalf("ListRecords failed: %v", err)
		}
		if len(records) != 0 {
			t.Errorf("expected no records for other tenant, got %d", len(records))
		}
	})

	t.Run("RequiresTenantID", func(t *testing.T) {
		err := repo.SaveRecord(ctx, "", &domain.ClientReliabilityRecord{ClientID: "c"})
		if !errors.Is(err, ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
		if _, err := repo.GetRecord(ctx, "", "c"); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
		if _, err := repo.ListAppointments(ctx, "", ""); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
		if err := repo.SaveRuleConfig(ctx, "", &domain.RuleConfig{ID: "r"}); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}

func TestAppointments(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	tenantID := "tenant-001"

	day := time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC)
	appts := []*domain.AppointmentContext{
		{AppointmentID: "appt-2", ClientID: "client-001", ServicePrice: decimal.RequireFromString("85.50"), ScheduledDate: day, StartTime: "14:00", IsWeekendPremium: true},
		{AppointmentID: "appt-1", ClientID: "client-001", ServicePrice: decimal.RequireFromString("40"), ScheduledDate: day, StartTime: "09:30", Status: domain.AppointmentCompleted},
		{AppointmentID: "appt-3", ClientID: "client-002", ServicePrice: decimal.RequireFromString("120.25"), ScheduledDate: day.AddDate(0, 0, 1), StartTime: "10:00", Status: domain.AppointmentBooked},
	}
	for _, a := range appts {
		if err := repo.SaveAppointment(ctx, tenantID, a); err != nil {
			t.Fatalf("SaveAppointment %s failed: %v", a.AppointmentID, err)
		}
	}

	t.Run("Get", func(t *testing.T) {
		got, err := repo.GetAppointment(ctx, tenantID, "appt-2")
		if err != nil {
			t.Fatalf("GetAppointment failed: %v", err)
		}
		if !got.ServicePrice.Equal(decimal.RequireFromString("85.5")) {
			t.Errorf("expected price 85.50, got %s", got.ServicePrice)
		}
		if !got.IsWeekendPremium {
			t.Error("expected weekend premium")
		}
		if got.Status != domain.AppointmentBooked {
			t.Errorf("empty status should be stored as booked, got %q", got.Status)
		}
		if got.TenantID != tenantID {
			t.Errorf("expected tenant %s, got %s", tenantID, got.TenantID)
		}
		if !got.ScheduledDate.Equal(day) {
			t.Errorf("expected date %v, got %v", day, got.ScheduledDate)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		if _, err := repo.GetAppointment(ctx, tenantID, "missing"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("ListByStatus", func(t *testing.T) {
		booked, err := repo.ListAppointments(ctx, tenantID, domain.AppointmentBooked)
		if err != nil {
			t.Fatalf("ListAppointments failed: %v", err)
		}
		if len(booked) != 2 || booked[0].AppointmentID != "appt-2" || booked[1].AppointmentID != "appt-3" {
			t.Errorf("unexpected booked list: %v", ids(booked))
		}

		all, _ := repo.ListAppointments(ctx, tenantID, "")
		if len(all) != 3 || all[0].AppointmentID != "appt-1" {
			t.Errorf("expected schedule order, got %v", ids(all))
		}
	})

	t.Run("ListByClient", func(t *testing.T) {
		got, err := repo.ListAppointmentsByClient(ctx, tenantID, "client-001")
		if err != nil {
			t.Fatalf("ListAppointmentsByClient failed: %v", err)
		}
		if len(got) != 2 {
			t.Errorf("expected 2 appointments, got %d", len(got))
		}

		other, _ := repo.ListAppointmentsByClient(ctx, "tenant-002", "client-001")
		if len(other) != 0 {
			t.Error("appointments leaked across tenants")
		}
	})

	t.Run("UpdateStatus", func(t *testing.T) {
		a := *appts[0]
		a.Status = domain.AppointmentCancelled
		if err := repo.SaveAppointment(ctx, tenantID, &a); err != nil {
			t.Fatalf("SaveAppointment failed: %v", err)
		}
		got, _ := repo.GetAppointment(ctx, tenantID, "appt-2")
		if got.Status != domain.AppointmentCancelled {
			t.Errorf("expected cancelled, got %s", got.Status)
		}
	})
}

func ids(appts []*domain.AppointmentContext) []string {
	out := make([]string, len(appts))
	for i, a := range appts {
		out[i] = a.AppointmentID
	}
	return out
}

func TestRuleConfigs(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	rule := &domain.RuleConfig{
		ID:          "late-evening",
		Name:        "Late evening",
		Description: "Evening slots need a higher deposit",
		Expression:  `start_time >= "19:00"`,
		Floor:       40,
		Reason:      domain.ReasonWeekendPremium,
		Priority:    2,
		Enabled:     true,
	}

	if err := repo.SaveRuleConfig(ctx, domain.GlobalTenantID, rule); err != nil {
		t.Fatalf("SaveRuleConfig failed: %v", err)
	}

	got, err := repo.GetRuleConfig(ctx, domain.GlobalTenantID, "late-evening")
	if err != nil {
		t.Fatalf("GetRuleConfig failed: %v", err)
	}
	if got.Floor != 40 || got.Reason != domain.ReasonWeekendPremium || got.Priority != 2 {
		t.Errorf("unexpected rule: %+v", got)
	}
	if got.Version != "1.0.0" {
		t.Errorf("expected default version, got %s", got.Version)
	}

	disabled := *rule
	disabled.Enabled = false
	if err := repo.SaveRuleConfig(ctx, domain.GlobalTenantID, &disabled); err != nil {
		t.Fatalf("SaveRuleConfig failed: %v", err)
	}
	_ = repo.SaveRuleConfig(ctx, domain.GlobalTenantID, &domain.RuleConfig{
		ID: "first", Expression: "has_record", Floor: 25, Reason: domain.ReasonRecentCancellation, Enabled: true,
	})

	list, err := repo.ListRuleConfigs(ctx, domain.GlobalTenantID)
	if err != nil {
		t.Fatalf("ListRuleConfigs failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 rules including disabled, got %d", len(list))
	}
	if list[0].ID != "first" || list[1].Enabled {
		t.Errorf("unexpected list: %+v %+v", list[0], list[1])
	}

	if _, err := repo.GetRuleConfig(ctx, "tenant-001", "late-evening"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRebind(t *testing.T) {
	pg := &SQLRepository{driver: "postgres"}
	if got := pg.rebind("SELECT * FROM t WHERE a = ? AND b = ?"); got != "SELECT * FROM t WHERE a = $1 AND b = $2" {
		t.Errorf("unexpected rebind: %s", got)
	}

	lite := &SQLRepository{driver: "sqlite"}
	if got := lite.rebind("a = ?"); got != "a = ?" {
		t.Errorf("sqlite should keep placeholders, got %s", got)
	}
}

func TestPostgresDSN(t *testing.T) {
	dsn := postgresDSN(domain.RepositoryConfig{
		PostgresUser:     "perch",
		PostgresPassword: "it's secret",
	})

	for _, want := range []string{"host=localhost", "port=5432", "dbname=perch", "sslmode=disable", "user=perch", `password='it\'s secret'`} {
		if !strings.Contains(dsn, want) {
			t.Errorf("dsn %q missing %q", dsn, want)
		}
	}
}

func TestUnsupportedDriver(t *testing.T) {
	if _, err := New(domain.RepositoryConfig{Driver: "oracle"}); err == nil {
		t.Error("expected error for unsupported driver")
	}
}
