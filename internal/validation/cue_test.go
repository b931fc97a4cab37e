package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tderrors "github.com/coachgrid/tabledit/internal/errors"
	"github.com/coachgrid/tabledit/internal/normalize"
	"github.com/coachgrid/tabledit/pkg/types"
)

const lessonSchema = `
title: string & !=""
level?: int & >=1 & <=5
`

func TestCUESchema_ValidateEntity(t *testing.T) {
	s, err := NewCUESchema[types.Record](lessonSchema)
	require.NoError(t, err)

	assert.Empty(t, s.ValidateEntity(types.Record{"title": "Greetings", "level": 3.0}))
	assert.Empty(t, s.ValidateEntity(types.Record{"title": "Greetings", "level": nil}))

	errs := s.ValidateEntity(types.Record{"title": "", "level": 3.0})
	require.Len(t, errs, 1)
	assert.Equal(t, "title", errs[0].Path)
	assert.NotEmpty(t, errs[0].Message)

	errs = s.ValidateEntity(types.Record{"title": "Greetings", "level": 9.0})
	require.Len(t, errs, 1)
	assert.Equal(t, "level", errs[0].Path)
}

func TestCUESchema_MissingRequiredField(t *testing.T) {
	s, err := NewCUESchema[types.Record](lessonSchema)
	require.NoError(t, err)

	errs := s.ValidateEntity(types.Record{"title": nil})
	require.NotEmpty(t, errs)
	assert.Equal(t, "title", errs[0].Path)
}

func TestCUESchema_CompileError(t *testing.T) {
	_, err := NewCUESchema[types.Record]("title: string &")
	require.Error(t, err)
	assert.True(t, tderrors.IsConfigError(err))
	assert.Equal(t, tderrors.CodeInvalidSchema, tderrors.GetCode(err))
}

func TestCUESchema_InValidator(t *testing.T) {
	cols := []types.Column{
		{ID: "title", Type: types.ColumnText},
		{ID: "level", Type: types.ColumnNumber},
	}
	s, err := NewCUESchema[types.Record](lessonSchema)
	require.NoError(t, err)
	v, err := New[types.Record](cols, normalize.RecordMapper{}, WithRowSchema[types.Record](s))
	require.NoError(t, err)

	assert.Nil(t, v.ValidateRow(map[string]string{"title": "Food", "level": "2.0"}))

	got := v.ValidateRow(map[string]string{"title": "Food", "level": "7"})
	require.Contains(t, got, "level")
	assert.True(t, strings.HasPrefix(got["level"], "level: "))
}
