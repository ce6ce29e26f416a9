package sqlite

import (
	"context"
	stderrors "errors"
	"reflect"
	"testing"

	"github.com/region23/desco-balance-bot/internal/storage/models"
	"github.com/region23/desco-balance-bot/pkg/errors"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	storage, err := New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create test storage: %v", err)
	}
	t.Cleanup(func() { storage.Close() })
	return storage
}

func ptr[T any](v T) *T { return &v }

func TestFindOrCreateUser(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	u, created, err := storage.FindOrCreateUser(ctx, models.Profile{ChatID: 7, Username: "rahim", FirstName: "Rahim"})
	if err != nil {
		t.Fatalf("FindOrCreateUser: %v", err)
	}
	if !created {
		t.Errorf("expected first call to create the user")
	}
	if u.Threshold != models.DefaultThreshold {
		t.Errorf("Threshold = %v", u.Threshold)
	}
	if !reflect.DeepEqual(u.NotificationTimes, []string{"08:00", "16:00"}) {
		t.Errorf("NotificationTimes = %v", u.NotificationTimes)
	}
	if u.CreatedAt.IsZero() {
		t.Errorf("CreatedAt not set")
	}

	if _, err := storage.UpdateUser(ctx, 7, models.UserUpdate{AccountNo: ptr("123")}); err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}

	// Повторный вызов обновляет профиль, но не сбрасывает настройки
	u, created, err = storage.FindOrCreateUser(ctx, models.Profile{ChatID: 7, Username: "rahim_new", FirstName: "Rahim"})
	if err != nil {
		t.Fatalf("FindOrCreateUser: %v", err)
	}
	if created {
		t.Errorf("second call must not report creation")
	}
	if u.Username != "rahim_new" {
		t.Errorf("Username = %q, want rahim_new", u.Username)
	}
	if u.AccountNo != "123" {
		t.Errorf("AccountNo was reset: %q", u.AccountNo)
	}
}

func TestGetUser_NotFound(t *testing.T) {
	storage := newTestStorage(t)

	_, err := storage.GetUser(context.Background(), 404)
	if !stderrors.Is(err, errors.ErrUserNotFound) {
		t.Errorf("expected USER_NOT_FOUND, got %v", err)
	}

	_, err = storage.UpdateUser(context.Background(), 404, models.UserUpdate{Subscribed: ptr(true)})
	if !stderrors.Is(err, errors.ErrUserNotFound) {
		t.Errorf("expected USER_NOT_FOUND from UpdateUser, got %v", err)
	}
}

func TestUpdateUser_ThresholdInvariant(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	if _, _, err := storage.FindOrCreateUser(ctx, models.Profile{ChatID: 1}); err != nil {
		t.Fatal(err)
	}
	u, err := storage.UpdateUser(ctx, 1, models.UserUpdate{Threshold: ptr(50.0), HourlyEnabled: ptr(true)})
	if err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	if !u.HourlyEnabled || u.Threshold != 50 {
		t.Fatalf("unexpected user after update: %+v", u)
	}

	if _, err := storage.UpdateUser(ctx, 1, models.UserUpdate{Threshold: ptr(0.0)}); err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	u, err = storage.GetUser(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if u.HourlyEnabled {
		t.Errorf("threshold 0 must persist hourly_enabled = false")
	}
}

func TestQueries(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	seed := []struct {
		chatID int64
		upd    models.UserUpdate
	}{
		{1, models.UserUpdate{Subscribed: ptr(true), NotificationTimes: []string{"08:00", "20:00"}}},
		{2, models.UserUpdate{Subscribed: ptr(true), NotificationTimes: []string{"18:00"}, HourlyEnabled: ptr(true)}},
		{3, models.UserUpdate{Subscribed: ptr(false), NotificationTimes: []string{"08:00"}, HourlyEnabled: ptr(true)}},
		{4, models.UserUpdate{Subscribed: ptr(true), NotificationTimes: []string{"08:00"}}},
	}
	for _, s := range seed {
		if _, _, err := storage.FindOrCreateUser(ctx, models.Profile{ChatID: s.chatID}); err != nil {
			t.Fatal(err)
		}
		if _, err := storage.UpdateUser(ctx, s.chatID, s.upd); err != nil {
			t.Fatal(err)
		}
	}

	ids := func(users []*models.User) []int64 {
		out := []int64{}
		for _, u := range users {
			out = append(out, u.ChatID)
		}
		return out
	}

	subscribed, err := storage.GetSubscribedUsers(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got := ids(subscribed); !reflect.DeepEqual(got, []int64{1, 2, 4}) {
		t.Errorf("GetSubscribedUsers = %v", got)
	}

	at8, err := storage.GetUsersByNotificationTime(ctx, "08:00")
	if err != nil {
		t.Fatal(err)
	}
	if got := ids(at8); !reflect.DeepEqual(got, []int64{1, 4}) {
		t.Errorf("GetUsersByNotificationTime(08:00) = %v", got)
	}

	// "8:00" не должно совпадать частично с "18:00"
	at800, err := storage.GetUsersByNotificationTime(ctx, "8:00")
	if err != nil {
		t.Fatal(err)
	}
	if len(at800) != 0 {
		t.Errorf("partial match on notification time: %v", ids(at800))
	}

	hourly, err := storage.GetUsersWithHourlyNotifications(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got := ids(hourly); !reflect.DeepEqual(got, []int64{2}) {
		t.Errorf("GetUsersWithHourlyNotifications = %v", got)
	}
}

func TestDeleteUser(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()

	if _, _, err := storage.FindOrCreateUser(ctx, models.Profile{ChatID: 9}); err != nil {
		t.Fatal(err)
	}
	if err := storage.DeleteUser(ctx, 9); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	if err := storage.DeleteUser(ctx, 9); !stderrors.Is(err, errors.ErrUserNotFound) {
		t.Errorf("second delete: expected USER_NOT_FOUND, got %v", err)
	}
	if err := storage.Ping(ctx); err != nil {
		t.Errorf("Ping: %v", err)
	}
}
