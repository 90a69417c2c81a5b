package normalize

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"formpulse-relay/internal/core/domain"
)

func event(answers ...domain.Answer) *domain.SubmissionEvent {
	return &domain.SubmissionEvent{
		SubmissionID: uuid.New(),
		FormID:       uuid.New(),
		FormTitle:    "Contact Us",
		Answers:      answers,
		CompletedAt:  time.Now(),
	}
}

func TestApply(t *testing.T) {
	t.Run("maps only configured fields", func(t *testing.T) {
		ev := event(
			domain.Answer{FieldID: "f1", FieldLabel: "Email", Value: "ann@example.com"},
			domain.Answer{FieldID: "f2", FieldLabel: "Notes", Value: "hello"},
		)
		got := Apply(ev, map[string]string{"f1": "email"})
		assert.Equal(t, map[string]interface{}{"email": "ann@example.com"}, got)
	})

	t.Run("drops empty values", func(t *testing.T) {
		ev := event(
			domain.Answer{FieldID: "f1", FieldLabel: "Email", Value: ""},
			domain.Answer{FieldID: "f2", FieldLabel: "Topics", Value: []interface{}{}},
			domain.Answer{FieldID: "f3", FieldLabel: "Name", Value: nil},
		)
		got := Apply(ev, map[string]string{"f1": "email", "f2": "topics", "f3": "name"})
		assert.Empty(t, got)
	})
}

func TestLabelData(t *testing.T) {
	ev := event(
		domain.Answer{FieldID: "f1", FieldLabel: "Email", Value: "ann@example.com"},
		domain.Answer{FieldID: "f2", FieldLabel: "", Value: "no label"},
		domain.Answer{FieldID: "f3", FieldLabel: "Blank", Value: "  "},
	)
	got := LabelData(ev)
	assert.Equal(t, map[string]interface{}{
		"Email": "ann@example.com",
		"f2":    "no label",
	}, got)
}

func TestMatchAlias(t *testing.T) {
	cases := []struct {
		label  string
		target string
		ok     bool
	}{
		{"First Name", "firstname", true},
		{"Your first name", "firstname", true},
		{"Surname", "lastname", true},
		{"Phone Number", "phone", true},
		{"Company", "company", true},
		{"Job Title", "jobtitle", true},
		{"Website URL", "website", true},
		{"Postal Code", "zip", true},
		{"Favourite colour", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.label, func(t *testing.T) {
			target, ok := MatchAlias(tc.label)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.target, target)
		})
	}
}

func TestResolveEmail(t *testing.T) {
	t.Run("explicit mapping wins", func(t *testing.T) {
		ev := event(
			domain.Answer{FieldID: "f1", FieldLabel: "Work Email", Value: "work@example.com"},
			domain.Answer{FieldID: "f2", FieldLabel: "Email", Value: "other@example.com"},
		)
		email, ok := ResolveEmail(ev, map[string]string{"f1": "email"})
		require.True(t, ok)
		assert.Equal(t, "work@example.com", email)
	})

	t.Run("label heuristic", func(t *testing.T) {
		ev := event(
			domain.Answer{FieldID: "f1", FieldLabel: "Name", Value: "Ann"},
			domain.Answer{FieldID: "f2", FieldLabel: "Email Address", Value: "ann@example.com"},
		)
		email, ok := ResolveEmail(ev, nil)
		require.True(t, ok)
		assert.Equal(t, "ann@example.com", email)
	})

	t.Run("value pattern fallback", func(t *testing.T) {
		ev := event(
			domain.Answer{FieldID: "f1", FieldLabel: "Name", Value: "Ann"},
			domain.Answer{FieldID: "f2", FieldLabel: "Contact", Value: "ann@example.com"},
		)
		email, ok := ResolveEmail(ev, nil)
		require.True(t, ok)
		assert.Equal(t, "ann@example.com", email)
	})

	t.Run("none resolvable", func(t *testing.T) {
		ev := event(domain.Answer{FieldID: "f1", FieldLabel: "Name", Value: "Ann"})
		_, ok := ResolveEmail(ev, nil)
		assert.False(t, ok)
	})
}

func TestLooksLikeEmail(t *testing.T) {
	assert.True(t, LooksLikeEmail("ann@example.com"))
	assert.False(t, LooksLikeEmail("not an email"))
	assert.False(t, LooksLikeEmail("spaces in@example.com"))
	assert.False(t, LooksLikeEmail(42))
}

func TestCoercions(t *testing.T) {
	t.Run("Str", func(t *testing.T) {
		assert.Equal(t, "a, b", Str([]interface{}{"a", "b"}))
		assert.Equal(t, "3.5", Str(3.5))
		assert.Equal(t, "true", Str(true))
		assert.Equal(t, "", Str(nil))
	})

	t.Run("Num", func(t *testing.T) {
		assert.Equal(t, 4.5, Num("4.5"))
		assert.Equal(t, 0.0, Num("not a number"))
		assert.Equal(t, 7.0, Num(7))
	})

	t.Run("Bool", func(t *testing.T) {
		assert.True(t, Bool("yes"))
		assert.False(t, Bool("no"))
		assert.False(t, Bool("FALSE"))
		assert.False(t, Bool(0))
		assert.False(t, Bool(nil))
		assert.True(t, Bool(1))
	})

	t.Run("StringList", func(t *testing.T) {
		assert.Equal(t, []string{"a", "b"}, StringList([]interface{}{"a", "b"}))
		assert.Equal(t, []string{"solo"}, StringList("solo"))
		assert.Nil(t, StringList(nil))
	})

	t.Run("ClampRating", func(t *testing.T) {
		assert.Equal(t, 5, ClampRating("9", 0, 5))
		assert.Equal(t, 0, ClampRating(-3, 0, 5))
		assert.Equal(t, 4, ClampRating(4.2, 0, 5))
	})

	t.Run("dates", func(t *testing.T) {
		d, ok := DateOnly("2026-03-01T12:30:00Z")
		require.True(t, ok)
		assert.Equal(t, "2026-03-01", d)

		dt, ok := DateTime("2026-03-01")
		require.True(t, ok)
		assert.Equal(t, "2026-03-01T00:00:00Z", dt)

		_, ok = DateOnly("not a date")
		assert.False(t, ok)
	})
}
