package record

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func customerSchema() *Schema {
	return NewSchemaBuilder(TypeRecord).
		WithEntry(NewEntryBuilder().WithName("id").WithType(TypeLong).MustBuild()).
		WithEntry(NewEntryBuilder().WithName("name").WithType(TypeString).MustBuild()).
		WithEntry(NewEntryBuilder().WithName("nickname").WithType(TypeString).WithNullable(true).MustBuild()).
		WithEntry(NewEntryBuilder().WithName("age").WithType(TypeInt).WithNullable(true).MustBuild()).
		WithEntry(NewEntryBuilder().WithName("created").WithType(TypeDatetime).WithNullable(true).MustBuild()).
		MustBuild()
}

func TestRecordBuilder_Strict(t *testing.T) {
	created := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)

	r, err := NewRecordBuilder(customerSchema()).
		WithLong("id", 7).
		WithString("name", "Ada").
		WithInt("age", 36).
		WithDateTime("created", created).
		Build()
	require.NoError(t, err)

	id, ok := r.GetLong("id")
	require.True(t, ok)
	assert.Equal(t, int64(7), id)

	name, ok := r.GetString("name")
	require.True(t, ok)
	assert.Equal(t, "Ada", name)

	_, ok = r.GetString("nickname")
	assert.False(t, ok)

	ts, ok := r.GetDateTime("created")
	require.True(t, ok)
	assert.True(t, created.Equal(ts))

	ms, ok := r.GetTimestamp("created")
	require.True(t, ok)
	assert.Equal(t, created.UnixMilli(), ms)
}

func TestRecordBuilder_StrictErrors(t *testing.T) {
	tests := []struct {
		name    string
		builder func() *RecordBuilder
		want    error
	}{
		{
			name: "unknown entry",
			builder: func() *RecordBuilder {
				return NewRecordBuilder(customerSchema()).WithString("email", "a@b.c")
			},
			want: ErrUnknownEntry,
		},
		{
			name: "setter does not match type",
			builder: func() *RecordBuilder {
				return NewRecordBuilder(customerSchema()).WithString("age", "36")
			},
			want: ErrTypeMismatch,
		},
		{
			name: "generic value does not match type",
			builder: func() *RecordBuilder {
				age, _ := customerSchema().Entry("age")
				return NewRecordBuilder(customerSchema()).With(age, int64(36))
			},
			want: ErrTypeMismatch,
		},
		{
			name: "null on non-nullable",
			builder: func() *RecordBuilder {
				return NewRecordBuilder(customerSchema()).WithNull("name")
			},
			want: ErrNonNullableViolation,
		},
		{
			name: "missing required",
			builder: func() *RecordBuilder {
				return NewRecordBuilder(customerSchema()).WithLong("id", 1)
			},
			want: ErrMissingRequiredValue,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.builder().Build()
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRecordBuilder_NonNullableContract(t *testing.T) {
	for _, e := range customerSchema().AllEntries() {
		if e.Nullable() {
			continue
		}
		t.Run(e.Name(), func(t *testing.T) {
			_, err := NewRecordBuilder(customerSchema()).Build()
			assert.ErrorIs(t, err, ErrMissingRequiredValue)

			err = NewRecordBuilder(customerSchema()).With(e, nil).Err()
			assert.ErrorIs(t, err, ErrNonNullableViolation)
		})
	}
}

func TestRecordBuilder_NullableAcceptsNull(t *testing.T) {
	r, err := NewRecordBuilder(customerSchema()).
		WithLong("id", 1).
		WithString("name", "n").
		WithString("nickname", "nick").
		WithNull("nickname").
		Build()
	require.NoError(t, err)
	_, ok := r.Get("nickname")
	assert.False(t, ok)
}

func TestRecordBuilder_LookupFallsBackToSanitizedName(t *testing.T) {
	s := NewSchemaBuilder(TypeRecord).
		WithEntry(NewEntryBuilder().WithName("first name").WithType(TypeString).MustBuild()).
		MustBuild()

	r, err := NewRecordBuilder(s).WithString("first name", "Ada").Build()
	require.NoError(t, err)

	v, ok := r.GetString("first_name")
	require.True(t, ok)
	assert.Equal(t, "Ada", v)

	v, ok = r.GetString("first name")
	require.True(t, ok)
	assert.Equal(t, "Ada", v)
}

func TestRecordBuilder_Inferred(t *testing.T) {
	nested := NewInferredRecordBuilder().WithString("name", "ok").MustBuild()

	r, err := NewInferredRecordBuilder().
		WithString("name", "first").
		WithInt("count", 3).
		WithBoolean("active", true).
		WithBytes("payload", []byte("abc")).
		WithFloat("ratio", 0.5).
		WithDouble("score", 1.25).
		WithRecord("record", nested).
		WithString("name", "second").
		Build()
	require.NoError(t, err)

	entries := r.Schema().AllEntries()
	assert.Equal(t, []string{"name", "count", "active", "payload", "ratio", "score", "record"}, names(entries))
	for _, e := range entries {
		assert.True(t, e.Nullable(), e.Name())
	}

	name, _ := r.GetString("name")
	assert.Equal(t, "second", name)

	rec, ok := r.GetRecord("record")
	require.True(t, ok)
	inner, _ := rec.GetString("name")
	assert.Equal(t, "ok", inner)

	e, _ := r.Schema().Entry("record")
	assert.True(t, e.ElementSchema().Equal(nested.Schema()))
}

func TestRecordBuilder_InferredTypeChangeReplacesEntryInPlace(t *testing.T) {
	r, err := NewInferredRecordBuilder().
		WithString("a", "x").
		WithString("b", "y").
		WithLong("a", 9).
		Build()
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, names(r.Schema().AllEntries()))
	e, _ := r.Schema().Entry("a")
	assert.Equal(t, TypeLong, e.Type())
	v, _ := r.GetLong("a")
	assert.Equal(t, int64(9), v)
}

func TestRecordBuilder_InferredNullForUnknownName(t *testing.T) {
	err := NewInferredRecordBuilder().WithNull("ghost").Err()
	assert.ErrorIs(t, err, ErrUnknownEntry)
}

func TestRecordBuilder_InferredNullSetters(t *testing.T) {
	r, err := NewInferredRecordBuilder().WithBytes("test", nil).Build()
	require.NoError(t, err)
	require.Len(t, r.Schema().Entries(), 1)
	e, ok := r.Schema().Entry("test")
	require.True(t, ok)
	assert.Equal(t, TypeBytes, e.Type())
	assert.True(t, e.Nullable())
	_, ok = r.Get("test")
	assert.False(t, ok)

	r, err = NewInferredRecordBuilder().
		WithString("name", "Ada").
		WithRecord("address", nil).
		WithString("name", "").
		Build()
	require.NoError(t, err)
	require.Len(t, r.Schema().Entries(), 2)
	address, ok := r.Schema().Entry("address")
	require.True(t, ok)
	assert.Equal(t, TypeRecord, address.Type())
	require.NotNil(t, address.ElementSchema())
	assert.Equal(t, 0, address.ElementSchema().Len())
}

func TestRecord_OwnsItsValues(t *testing.T) {
	raw := []byte("abc")
	tags := NewEntryBuilder().WithName("tags").WithType(TypeArray).
		WithElementSchema(NewSchemaBuilder(TypeString).MustBuild()).MustBuild()

	r, err := NewInferredRecordBuilder().
		WithBytes("b", raw).
		WithArray(tags, []string{"a", "b"}).
		Build()
	require.NoError(t, err)

	raw[0] = 'X'
	got, ok := r.GetBytes("b")
	require.True(t, ok)
	assert.Equal(t, []byte("abc"), got)

	got[1] = 'Y'
	values, ok := r.GetArray("tags")
	require.True(t, ok)
	values[0] = "MUTATED"
	strs, ok := ArrayOf[string](r, "tags")
	require.True(t, ok)
	strs[1] = "MUTATED"
	r.Values()["b"].([]byte)[2] = 'Z'

	assert.Equal(t, `{"b":"YWJj","tags":["a","b"]}`, r.String())
}

func TestRecordBuilder_InferredWithEntry(t *testing.T) {
	required := NewEntryBuilder().WithName("required").WithType(TypeString).MustBuild()

	_, err := NewInferredRecordBuilder().With(required, nil).Build()
	assert.ErrorIs(t, err, ErrNonNullableViolation)

	r, err := NewInferredRecordBuilder().With(required, "here").Build()
	require.NoError(t, err)
	e, _ := r.Schema().Entry("required")
	assert.False(t, e.Nullable())
}

func TestRecordBuilder_Arrays(t *testing.T) {
	longs := NewSchemaBuilder(TypeLong).MustBuild()
	numbers := NewEntryBuilder().WithName("numbers").WithType(TypeArray).WithElementSchema(longs).MustBuild()

	t.Run("typed slice is copied to []any", func(t *testing.T) {
		r, err := NewInferredRecordBuilder().WithArray(numbers, []int64{1, 2, 3}).Build()
		require.NoError(t, err)

		values, ok := r.GetArray("numbers")
		require.True(t, ok)
		assert.Equal(t, []any{int64(1), int64(2), int64(3)}, values)

		typed, ok := ArrayOf[int64](r, "numbers")
		require.True(t, ok)
		assert.Equal(t, []int64{1, 2, 3}, typed)

		_, ok = ArrayOf[string](r, "numbers")
		assert.False(t, ok)
	})

	t.Run("element type is checked", func(t *testing.T) {
		err := NewInferredRecordBuilder().WithArray(numbers, []int32{1, 2}).Err()
		assert.ErrorIs(t, err, ErrTypeMismatch)
	})

	t.Run("array setter on scalar entry", func(t *testing.T) {
		name := NewEntryBuilder().WithName("name").WithType(TypeString).MustBuild()
		err := NewInferredRecordBuilder().WithArray(name, []string{"a"}).Err()
		assert.ErrorIs(t, err, ErrTypeMismatch)
	})

	t.Run("records", func(t *testing.T) {
		item := NewSchemaBuilder(TypeRecord).
			WithEntry(NewEntryBuilder().WithName("sku").WithType(TypeString).MustBuild()).
			MustBuild()
		items := NewEntryBuilder().WithName("items").WithType(TypeArray).WithElementSchema(item).MustBuild()

		r1 := NewRecordBuilder(item).WithString("sku", "A1").MustBuild()
		r2 := NewRecordBuilder(item).WithString("sku", "B2").MustBuild()

		order := NewSchemaBuilder(TypeRecord).WithEntry(items).MustBuild()
		r, err := NewRecordBuilder(order).WithArray(items, []*Record{r1, r2}).Build()
		require.NoError(t, err)

		recs, ok := ArrayOf[*Record](r, "items")
		require.True(t, ok)
		require.Len(t, recs, 2)
		sku, _ := recs[1].GetString("sku")
		assert.Equal(t, "B2", sku)

		err = NewRecordBuilder(order).WithArray(items, []string{"A1"}).Err()
		assert.ErrorIs(t, err, ErrTypeMismatch)
	})

	t.Run("datetime elements are normalized", func(t *testing.T) {
		dates := NewSchemaBuilder(TypeDatetime).MustBuild()
		when := NewEntryBuilder().WithName("when").WithType(TypeArray).WithElementSchema(dates).MustBuild()
		ts := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

		r, err := NewInferredRecordBuilder().WithArray(when, []time.Time{ts}).Build()
		require.NoError(t, err)
		values, _ := r.GetArray("when")
		assert.Equal(t, []any{ts.UnixMilli()}, values)
	})
}

func TestRecordBuilder_BytesFromFixedArray(t *testing.T) {
	payload := NewEntryBuilder().WithName("hash").WithType(TypeBytes).MustBuild()
	r, err := NewInferredRecordBuilder().With(payload, [4]byte{1, 2, 3, 4}).Build()
	require.NoError(t, err)

	b, ok := r.GetBytes("hash")
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3, 4}, b)
}

func TestRecordBuilder_RemoveEntry(t *testing.T) {
	b := NewRecordBuilder(customerSchema()).
		WithLong("id", 1).
		WithString("name", "n").
		WithInt("age", 20)

	age, _ := customerSchema().Entry("age")
	b.RemoveEntry(age)
	require.NoError(t, b.Err())
	assert.Equal(t, []string{"id", "name", "nickname", "created"}, names(b.CurrentEntries()))

	r, err := b.Build()
	require.NoError(t, err)
	_, ok := r.Schema().Entry("age")
	assert.False(t, ok)
	_, ok = r.Get("age")
	assert.False(t, ok)

	ghost := NewEntryBuilder().WithName("ghost").WithType(TypeString).MustBuild()
	err = NewRecordBuilder(customerSchema()).RemoveEntry(ghost).Err()
	assert.ErrorIs(t, err, ErrUnknownEntry)
}

func TestRecordBuilder_UpdateEntryByName(t *testing.T) {
	renamed := NewEntryBuilder().WithName("full_name").WithType(TypeString).WithComment("renamed").MustBuild()

	b := NewRecordBuilder(customerSchema()).
		WithLong("id", 1).
		WithString("name", "Ada").
		UpdateEntryByName("name", renamed)
	require.NoError(t, b.Err())

	assert.Equal(t, []string{"id", "full_name", "nickname", "age", "created"}, names(b.CurrentEntries()))
	v, ok := b.Value("full_name")
	require.True(t, ok)
	assert.Equal(t, "Ada", v)
	_, ok = b.Value("name")
	assert.False(t, ok)

	r, err := b.Build()
	require.NoError(t, err)
	got, _ := r.GetString("full_name")
	assert.Equal(t, "Ada", got)
	e, _ := r.Schema().Entry("full_name")
	assert.Equal(t, "renamed", e.Comment())
}

func TestRecordBuilder_UpdateEntryByNameErrors(t *testing.T) {
	asInt := NewEntryBuilder().WithName("name").WithType(TypeInt).MustBuild()
	err := NewRecordBuilder(customerSchema()).
		WithString("name", "Ada").
		UpdateEntryByName("name", asInt).
		Err()
	assert.ErrorIs(t, err, ErrTypeMismatch)

	err = NewRecordBuilder(customerSchema()).UpdateEntryByName("ghost", asInt).Err()
	assert.ErrorIs(t, err, ErrUnknownEntry)

	clash := NewEntryBuilder().WithName("id").WithType(TypeString).MustBuild()
	err = NewRecordBuilder(customerSchema()).UpdateEntryByName("name", clash).Err()
	assert.ErrorIs(t, err, ErrDuplicateEntryName)
}

func TestRecordBuilder_UnchangedSchemaIsShared(t *testing.T) {
	s := customerSchema()
	r := NewRecordBuilder(s).WithLong("id", 1).WithString("name", "n").MustBuild()
	assert.Same(t, s, r.Schema())
}

func TestRecordBuilder_StructuralChangeKeepsProps(t *testing.T) {
	s := customerSchema().ToBuilder().WithProp("origin", "crm").MustBuild()
	nickname, _ := s.Entry("nickname")

	r := NewRecordBuilder(s).
		WithLong("id", 1).
		WithString("name", "n").
		RemoveEntry(nickname).
		MustBuild()

	assert.NotSame(t, s, r.Schema())
	v, ok := r.Schema().Prop("origin")
	require.True(t, ok)
	assert.Equal(t, "crm", v)
}
