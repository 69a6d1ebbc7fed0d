package schema_test

import (
	"testing"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabarc/tabarc/schema"
)

func TestKindOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		dt   arrow.DataType
		want schema.Kind
	}{
		{arrow.PrimitiveTypes.Int64, schema.KindInt},
		{arrow.PrimitiveTypes.Int8, schema.KindInt},
		{arrow.PrimitiveTypes.Uint32, schema.KindUint},
		{arrow.PrimitiveTypes.Float64, schema.KindFloat},
		{arrow.FixedWidthTypes.Boolean, schema.KindBool},
		{arrow.BinaryTypes.String, schema.KindString},
		{arrow.BinaryTypes.LargeString, schema.KindString},
		{arrow.BinaryTypes.Binary, schema.KindBinary},
		{arrow.FixedWidthTypes.Timestamp_us, schema.KindTimestamp},
		{arrow.FixedWidthTypes.Date32, schema.KindDate},
		{&arrow.Decimal128Type{Precision: 18, Scale: 2}, schema.KindDecimal},
		{arrow.ListOf(arrow.PrimitiveTypes.Int64), schema.KindNested},
		{arrow.StructOf(arrow.Field{Name: "a", Type: arrow.PrimitiveTypes.Int64}), schema.KindNested},
		{&arrow.DictionaryType{IndexType: arrow.PrimitiveTypes.Int32, ValueType: arrow.BinaryTypes.String}, schema.KindString},
		{arrow.Null, schema.KindString},
	}

	for _, test := range tests {
		assert.Equal(t, test.want, schema.KindOf(test.dt), "KindOf(%s)", test.dt)
	}
}

func TestNormalizeCollapsesWideTypes(t *testing.T) {
	t.Parallel()

	in := arrow.NewSchema([]arrow.Field{
		{Name: "a", Type: arrow.BinaryTypes.LargeString, Nullable: true},
		{Name: "b", Type: arrow.BinaryTypes.LargeBinary, Nullable: true},
		{Name: "c", Type: &arrow.DictionaryType{IndexType: arrow.PrimitiveTypes.Int32, ValueType: arrow.BinaryTypes.String}},
		{Name: "d", Type: arrow.Null},
		{Name: "e", Type: arrow.PrimitiveTypes.Int64},
	}, nil)

	out, err := schema.Normalize(in)
	require.NoError(t, err)

	assert.Equal(t, arrow.BinaryTypes.String, out.Field(0).Type)
	assert.Equal(t, arrow.BinaryTypes.Binary, out.Field(1).Type)
	assert.Equal(t, arrow.BinaryTypes.String, out.Field(2).Type)
	assert.Equal(t, arrow.BinaryTypes.String, out.Field(3).Type)
	assert.True(t, out.Field(3).Nullable, "all-null column becomes nullable")
	assert.Equal(t, arrow.PrimitiveTypes.Int64, out.Field(4).Type)
}

func TestNormalizeKeepsNested(t *testing.T) {
	t.Parallel()

	nested := arrow.ListOf(arrow.PrimitiveTypes.Int64)
	in := arrow.NewSchema([]arrow.Field{{Name: "xs", Type: nested, Nullable: true}}, nil)

	out, err := schema.Normalize(in)
	require.NoError(t, err)
	assert.Equal(t, nested, out.Field(0).Type)
}

func TestNormalizeRejectsDuplicateNames(t *testing.T) {
	t.Parallel()

	in := arrow.NewSchema([]arrow.Field{
		{Name: "x", Type: arrow.PrimitiveTypes.Int64},
		{Name: "x", Type: arrow.BinaryTypes.String},
	}, nil)

	_, err := schema.Normalize(in)
	assert.ErrorContains(t, err, "duplicate column name")
}
