package service

import (
	"context"
	"testing"
	"time"

	"rendiconto/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategoryService_SeedDefaults(t *testing.T) {
	ts := newTestServices(t)
	ctx := context.Background()

	n, err := ts.categories.SeedDefaults(ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultCategoryCount(), n)

	// idempotent
	n, err = ts.categories.SeedDefaults(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	globals, err := ts.categories.ListGlobal(ctx, "")
	require.NoError(t, err)
	assert.Len(t, globals, DefaultCategoryCount())
	for _, c := range globals {
		assert.True(t, c.IsDefault)
		assert.Nil(t, c.UserID)
	}

	income, err := ts.categories.ListGlobal(ctx, models.CategoryTypeIncome)
	require.NoError(t, err)
	assert.NotEmpty(t, income)
	for _, c := range income {
		assert.Equal(t, models.CategoryTypeIncome, c.Type)
	}
}

func TestCategoryService_ScopeInvariant(t *testing.T) {
	ts := newTestServices(t)
	uid := uint(7)

	err := ts.db.Create(&models.Category{Name: "X", Type: models.CategoryTypeExpense, Color: "#000000", IsDefault: true, UserID: &uid, IsActive: true}).Error
	assert.ErrorIs(t, err, models.ErrCategoryScope)

	err = ts.db.Create(&models.Category{Name: "Y", Type: models.CategoryTypeExpense, Color: "#000000", IsActive: true}).Error
	assert.ErrorIs(t, err, models.ErrCategoryScope)

	created, err := ts.categories.Create(context.Background(), uid, CategoryInput{Name: "z"})
	require.NoError(t, err)
	assert.False(t, created.IsDefault)
	require.NotNil(t, created.UserID)
	assert.Equal(t, uid, *created.UserID)
}

func TestCategoryService_Create(t *testing.T) {
	ts := newTestServices(t)
	ctx := context.Background()
	_, err := ts.categories.SeedDefaults(ctx)
	require.NoError(t, err)

	cat, err := ts.categories.Create(ctx, 1, CategoryInput{Name: "  veterinario ", Description: "Cure animali"})
	require.NoError(t, err)
	assert.Equal(t, "VETERINARIO", cat.Name)
	assert.Equal(t, models.DefaultCategoryColor, cat.Color)
	assert.Equal(t, models.CategoryTypeExpense, cat.Type)

	_, err = ts.categories.Create(ctx, 1, CategoryInput{Name: "Veterinario"})
	assert.ErrorIs(t, err, &Error{Kind: KindConflict, Code: CodeDuplicateName})

	// another owner may reuse the name
	_, err = ts.categories.Create(ctx, 2, CategoryInput{Name: "veterinario"})
	assert.NoError(t, err)

	// a private name may shadow a global one
	_, err = ts.categories.Create(ctx, 1, CategoryInput{Name: "salute"})
	assert.NoError(t, err)

	_, err = ts.categories.Create(ctx, 1, CategoryInput{Name: "colore", Color: "rosso"})
	require.Error(t, err)
	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, KindValidationFailed, se.Kind)
	assert.Equal(t, "colore", se.Fields[0].Field)
}

func TestCategoryService_ListForUser(t *testing.T) {
	ts := newTestServices(t)
	ctx := context.Background()
	_, err := ts.categories.SeedDefaults(ctx)
	require.NoError(t, err)

	_, err = ts.categories.Create(ctx, 1, CategoryInput{Name: "mia"})
	require.NoError(t, err)
	_, err = ts.categories.Create(ctx, 2, CategoryInput{Name: "altrui"})
	require.NoError(t, err)

	cats, err := ts.categories.ListForUser(ctx, 1, "")
	require.NoError(t, err)
	require.Len(t, cats, DefaultCategoryCount()+1)

	globals := 0
	for i, c := range cats {
		assert.NotEqual(t, "ALTRUI", c.Name)
		if c.IsDefault {
			globals++
			assert.Less(t, i, DefaultCategoryCount(), "globals come first")
		}
	}
	assert.Equal(t, DefaultCategoryCount(), globals)
	assert.Equal(t, "MIA", cats[len(cats)-1].Name)

	private, err := ts.categories.ListPrivate(ctx, 1)
	require.NoError(t, err)
	require.Len(t, private, 1)
	assert.Equal(t, "MIA", private[0].Name)
}

func TestCategoryService_UpdateForeignIsNotFound(t *testing.T) {
	ts := newTestServices(t)
	ctx := context.Background()
	_, err := ts.categories.SeedDefaults(ctx)
	require.NoError(t, err)

	globals, err := ts.categories.ListGlobal(ctx, "")
	require.NoError(t, err)
	_, err = ts.categories.Update(ctx, globals[0].ID, 1, CategoryPatch{Name: ptr("nuovo")})
	assert.True(t, IsKind(err, KindNotFound))

	cat, err := ts.categories.Create(ctx, 2, CategoryInput{Name: "altrui"})
	require.NoError(t, err)
	_, err = ts.categories.Update(ctx, cat.ID, 1, CategoryPatch{Color: ptr("#112233")})
	assert.True(t, IsKind(err, KindNotFound))

	updated, err := ts.categories.Update(ctx, cat.ID, 2, CategoryPatch{Color: ptr("#112233")})
	require.NoError(t, err)
	assert.Equal(t, "#112233", updated.Color)
	assert.Equal(t, "ALTRUI", updated.Name)
}

func TestCategoryService_Delete(t *testing.T) {
	ts := newTestServices(t)
	ctx := context.Background()
	u := ts.registerUser(t, "owner@example.com")
	b := ts.createBeneficiary(t, u.ID, "BNCGLI40E52L219K")

	used, err := ts.categories.Create(ctx, u.ID, CategoryInput{Name: "badante"})
	require.NoError(t, err)
	unused, err := ts.categories.Create(ctx, u.ID, CategoryInput{Name: "hobby"})
	require.NoError(t, err)

	_, err = ts.reports.Create(ctx, u.ID, ReportInput{
		BeneficiaryID: b.ID,
		PeriodStart:   date(2024, time.January, 1),
		PeriodEnd:     date(2024, time.December, 31),
		CaseRef:       "123/2024",
		Ledger: &models.Ledger{
			Expense: []models.LedgerEntry{{Category: "badante", Amount: 900}},
		},
	})
	require.NoError(t, err)

	out, err := ts.categories.Delete(ctx, used.ID, u.ID)
	require.NoError(t, err)
	assert.True(t, out.Deactivated)
	assert.Equal(t, int64(1), out.ReferencingReports)

	var reloaded models.Category
	require.NoError(t, ts.db.First(&reloaded, used.ID).Error)
	assert.False(t, reloaded.IsActive)
	assert.Nil(t, reloaded.ActiveSlot)

	out, err = ts.categories.Delete(ctx, unused.ID, u.ID)
	require.NoError(t, err)
	assert.False(t, out.Deactivated)
	var count int64
	ts.db.Model(&models.Category{}).Where("id = ?", unused.ID).Count(&count)
	assert.Zero(t, count)

	// deactivated names can be reused, then reactivating the old one collides
	_, err = ts.categories.Create(ctx, u.ID, CategoryInput{Name: "badante"})
	require.NoError(t, err)
	_, err = ts.categories.Reactivate(ctx, used.ID, u.ID)
	assert.True(t, IsKind(err, KindConflict))
}

func TestCategoryService_Reactivate(t *testing.T) {
	ts := newTestServices(t)
	ctx := context.Background()
	u := ts.registerUser(t, "react@example.com")
	b := ts.createBeneficiary(t, u.ID, "BNCGLI40E52L219K")

	cat, err := ts.categories.Create(ctx, u.ID, CategoryInput{Name: "farmaci extra", Type: models.CategoryTypeExpense})
	require.NoError(t, err)
	_, err = ts.reports.Create(ctx, u.ID, ReportInput{
		BeneficiaryID: b.ID,
		PeriodStart:   date(2023, time.January, 1),
		PeriodEnd:     date(2023, time.December, 31),
		CaseRef:       "1/2023",
		Ledger:        &models.Ledger{Expense: []models.LedgerEntry{{Category: "FARMACI EXTRA", Amount: 10}}},
	})
	require.NoError(t, err)
	_, err = ts.categories.Delete(ctx, cat.ID, u.ID)
	require.NoError(t, err)

	got, err := ts.categories.Reactivate(ctx, cat.ID, u.ID)
	require.NoError(t, err)
	assert.True(t, got.IsActive)
}
