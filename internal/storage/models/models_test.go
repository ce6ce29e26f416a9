package models

import (
	stderrors "errors"
	"reflect"
	"testing"

	"github.com/region23/desco-balance-bot/pkg/errors"
)

func TestNewUser_Defaults(t *testing.T) {
	u := NewUser(Profile{ChatID: 42, FirstName: "Rahim"})

	if u.Threshold != 100 {
		t.Errorf("Threshold = %v, want 100", u.Threshold)
	}
	if !reflect.DeepEqual(u.NotificationTimes, []string{"08:00", "16:00"}) {
		t.Errorf("NotificationTimes = %v", u.NotificationTimes)
	}
	if u.Subscribed || u.HourlyEnabled {
		t.Errorf("new user must not be subscribed or hourly-enabled")
	}
	if u.HasAccount() {
		t.Errorf("new user has no account")
	}
}

func TestApply_ThresholdDisablesHourly(t *testing.T) {
	u := NewUser(Profile{ChatID: 1})
	enabled := true
	u.Apply(UserUpdate{HourlyEnabled: &enabled})
	if !u.HourlyEnabled {
		t.Fatalf("expected hourly enabled with default threshold")
	}

	zero := 0.0
	u.Apply(UserUpdate{Threshold: &zero})
	if u.HourlyEnabled {
		t.Errorf("threshold <= 0 must force hourly off")
	}

	negative := -5.0
	u.Apply(UserUpdate{Threshold: &negative, HourlyEnabled: &enabled})
	if u.HourlyEnabled {
		t.Errorf("hourly cannot be enabled together with a non-positive threshold")
	}
}

func TestApply_PartialFields(t *testing.T) {
	u := NewUser(Profile{ChatID: 1})
	acc := "  12345678 "
	sub := true
	u.Apply(UserUpdate{AccountNo: &acc, Subscribed: &sub, NotificationTimes: []string{"20:00", "08:00", "20:00"}})

	if u.AccountNo != "12345678" {
		t.Errorf("AccountNo = %q", u.AccountNo)
	}
	if u.MeterNo != "" {
		t.Errorf("MeterNo should be untouched")
	}
	if !u.Subscribed {
		t.Errorf("Subscribed not applied")
	}
	if !reflect.DeepEqual(u.NotificationTimes, []string{"08:00", "20:00"}) {
		t.Errorf("NotificationTimes = %v", u.NotificationTimes)
	}
	if u.Threshold != DefaultThreshold {
		t.Errorf("Threshold should be untouched")
	}
}

func TestParseTimes(t *testing.T) {
	tests := []struct {
		in      string
		want    []string
		wantErr bool
	}{
		{"08:00, 16:00", []string{"08:00", "16:00"}, false},
		{"16:00,08:00,16:00", []string{"08:00", "16:00"}, false},
		{"8:30", []string{"08:30"}, false},
		{"23:59,", []string{"23:59"}, false},
		{"24:00", nil, true},
		{"08:60", nil, true},
		{"noon", nil, true},
		{" , ", nil, true},
	}

	for _, tt := range tests {
		got, err := ParseTimes(tt.in)
		if tt.wantErr {
			if !stderrors.Is(err, errors.ErrInvalidTime) {
				t.Errorf("ParseTimes(%q) err = %v, want INVALID_TIME", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseTimes(%q) unexpected error: %v", tt.in, err)
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ParseTimes(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestDisplayName(t *testing.T) {
	u := &User{FirstName: "Mehedi", Username: "mehedi"}
	if got := u.DisplayName(); got != "Mehedi (@mehedi)" {
		t.Errorf("DisplayName = %q", got)
	}
	if got := (&User{}).DisplayName(); got != "Unknown" {
		t.Errorf("DisplayName = %q", got)
	}
}
