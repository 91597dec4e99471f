package service

import (
	"context"
	"strings"

	"rendiconto/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// defaultCategories fixed global set seeded on first start
var defaultCategories = []models.Category{
	{Name: "PENSIONE", Type: models.CategoryTypeIncome, Description: "Pensione di vecchiaia, invalidità, reversibilità", Color: "#198754"},
	{Name: "STIPENDIO/SALARIO", Type: models.CategoryTypeIncome, Description: "Redditi da lavoro dipendente", Color: "#198754"},
	{Name: "RENDITE IMMOBILIARI", Type: models.CategoryTypeIncome, Description: "Affitti e rendite da immobili", Color: "#fd7e14"},
	{Name: "DIVIDENDI/INTERESSI", Type: models.CategoryTypeIncome, Description: "Rendimenti finanziari, interessi bancari", Color: "#0d6efd"},
	{Name: "VENDITA BENI", Type: models.CategoryTypeIncome, Description: "Vendita di beni mobili e immobili", Color: "#ffc107"},
	{Name: "RIMBORSI", Type: models.CategoryTypeIncome, Description: "Rimborsi spese, assicurazioni, vari", Color: "#20c997"},
	{Name: "DONAZIONI RICEVUTE", Type: models.CategoryTypeIncome, Description: "Donazioni e lasciti ricevuti", Color: "#e83e8c"},
	{Name: "SALUTE", Type: models.CategoryTypeExpense, Description: "Spese mediche, farmaci, visite specialistiche", Color: "#dc3545"},
	{Name: "CULTURA E TEMPO LIBERO", Type: models.CategoryTypeExpense, Description: "Libri, corsi, eventi culturali", Color: "#6f42c1"},
	{Name: "RISTORANTI E LOCALI", Type: models.CategoryTypeExpense, Description: "Pasti fuori casa, ristoranti, bar", Color: "#fd7e14"},
	{Name: "VACANZE E SVAGO", Type: models.CategoryTypeExpense, Description: "Viaggi, soggiorni, attività ricreative", Color: "#20c997"},
	{Name: "BANCA", Type: models.CategoryTypeExpense, Description: "Commissioni bancarie, spese finanziarie", Color: "#0d6efd"},
	{Name: "UFFICIO", Type: models.CategoryTypeExpense, Description: "Cancelleria, servizi", Color: "#6c757d"},
	{Name: "CURA DELLA PERSONA", Type: models.CategoryTypeExpense, Description: "Parrucchiere, estetica", Color: "#e83e8c"},
	{Name: "ABBIGLIAMENTO", Type: models.CategoryTypeExpense, Description: "Vestiti, scarpe, accessori", Color: "#198754"},
	{Name: "AUTO", Type: models.CategoryTypeExpense, Description: "Carburante, manutenzione, assicurazione auto", Color: "#ffc107"},
}

// DefaultCategoryCount size of the seeded global set
func DefaultCategoryCount() int { return len(defaultCategories) }

// CategoryInput fields accepted on create
type CategoryInput struct {
	Name        string
	Type        string
	Description string
	Color       string
}

// CategoryPatch fields accepted on update; nil means unchanged
type CategoryPatch struct {
	Name        *string
	Type        *string
	Description *string
	Color       *string
}

// DeleteOutcome result of a category delete
type DeleteOutcome struct {
	Deactivated        bool
	ReferencingReports int64
}

// CategoryService global and private ledger categories
type CategoryService struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewCategoryService creates the category catalog
func NewCategoryService(db *gorm.DB, log *zap.Logger) *CategoryService {
	return &CategoryService{db: db, log: log}
}

// ListGlobal active default categories by name; typ filters by ENTRATE/USCITE when set
func (s *CategoryService) ListGlobal(ctx context.Context, typ string) ([]models.Category, error) {
	var cats []models.Category
	q := s.db.WithContext(ctx).Where("is_default = ? AND is_active = ?", true, true)
	if typ != "" {
		q = q.Where("type = ?", strings.ToUpper(typ))
	}
	if err := q.Order("name ASC").Find(&cats).Error; err != nil {
		return nil, storeError(err, "", "", "")
	}
	return cats, nil
}

// ListForUser active globals followed by the user's active private categories, each by name
func (s *CategoryService) ListForUser(ctx context.Context, userID uint, typ string) ([]models.Category, error) {
	var cats []models.Category
	q := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Where(s.db.Where("is_default = ?", true).Or("user_id = ?", userID))
	if typ != "" {
		q = q.Where("type = ?", strings.ToUpper(typ))
	}
	if err := q.Order("is_default DESC").Order("name ASC").Find(&cats).Error; err != nil {
		return nil, storeError(err, "", "", "")
	}
	return cats, nil
}

// ListPrivate the user's active private categories by name
func (s *CategoryService) ListPrivate(ctx context.Context, userID uint) ([]models.Category, error) {
	var cats []models.Category
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND is_default = ? AND is_active = ?", userID, false, true).
		Order("name ASC").
		Find(&cats).Error
	if err != nil {
		return nil, storeError(err, "", "", "")
	}
	return cats, nil
}

// Create adds a private category for userID
func (s *CategoryService) Create(ctx context.Context, userID uint, in CategoryInput) (*models.Category, error) {
	cat := &models.Category{
		Name:        normalizeCategoryName(in.Name),
		Type:        strings.ToUpper(strings.TrimSpace(in.Type)),
		Description: strings.TrimSpace(in.Description),
		Color:       strings.TrimSpace(in.Color),
		IsDefault:   false,
		UserID:      &userID,
		IsActive:    true,
	}
	if cat.Color == "" {
		cat.Color = models.DefaultCategoryColor
	}
	if cat.Type == "" {
		cat.Type = models.CategoryTypeExpense
	}
	if err := validateCategory(cat); err != nil {
		return nil, err
	}
	if err := s.ensureNameFree(ctx, userID, cat.Name, 0); err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Create(cat).Error; err != nil {
		return nil, storeError(err, "", CodeDuplicateName, duplicateCategoryMsg)
	}
	s.log.Info("categoria creata", zap.Uint("user_id", userID), zap.Uint("category_id", cat.ID), zap.String("name", cat.Name))
	return cat, nil
}

// Update changes a private category owned by userID
func (s *CategoryService) Update(ctx context.Context, id, userID uint, patch CategoryPatch) (*models.Category, error) {
	cat, err := s.owned(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	oldName := cat.Name
	if patch.Name != nil {
		cat.Name = normalizeCategoryName(*patch.Name)
	}
	if patch.Type != nil {
		cat.Type = strings.ToUpper(strings.TrimSpace(*patch.Type))
	}
	if patch.Description != nil {
		cat.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Color != nil {
		cat.Color = strings.TrimSpace(*patch.Color)
		if cat.Color == "" {
			cat.Color = models.DefaultCategoryColor
		}
	}
	if err := validateCategory(cat); err != nil {
		return nil, err
	}
	if cat.Name != oldName && cat.IsActive {
		if err := s.ensureNameFree(ctx, userID, cat.Name, cat.ID); err != nil {
			return nil, err
		}
	}

	if err := s.db.WithContext(ctx).Save(cat).Error; err != nil {
		return nil, storeError(err, categoryNotFoundMsg, CodeDuplicateName, duplicateCategoryMsg)
	}
	return cat, nil
}

// Delete removes a private category, or deactivates it when reports still use its name
func (s *CategoryService) Delete(ctx context.Context, id, userID uint) (DeleteOutcome, error) {
	cat, err := s.owned(ctx, id, userID)
	if err != nil {
		return DeleteOutcome{}, err
	}

	refs, err := s.countReferencingReports(ctx, userID, cat.Name)
	if err != nil {
		return DeleteOutcome{}, err
	}

	if refs > 0 {
		cat.IsActive = false
		if err := s.db.WithContext(ctx).Save(cat).Error; err != nil {
			return DeleteOutcome{}, storeError(err, categoryNotFoundMsg, "", "")
		}
		s.log.Info("categoria disattivata", zap.Uint("category_id", cat.ID), zap.Int64("reports", refs))
		return DeleteOutcome{Deactivated: true, ReferencingReports: refs}, nil
	}

	if err := s.db.WithContext(ctx).Delete(&models.Category{}, cat.ID).Error; err != nil {
		return DeleteOutcome{}, storeError(err, categoryNotFoundMsg, "", "")
	}
	s.log.Info("categoria eliminata", zap.Uint("category_id", cat.ID))
	return DeleteOutcome{}, nil
}

// Reactivate turns a private category back on. Name uniqueness is not re-checked here;
// a collision with a newer active category is still rejected by the unique index.
func (s *CategoryService) Reactivate(ctx context.Context, id, userID uint) (*models.Category, error) {
	cat, err := s.owned(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	cat.IsActive = true
	if err := s.db.WithContext(ctx).Save(cat).Error; err != nil {
		return nil, storeError(err, categoryNotFoundMsg, CodeDuplicateName, duplicateCategoryMsg)
	}
	return cat, nil
}

// SeedDefaults inserts the global set when no global category exists yet.
// It returns how many rows were inserted.
func (s *CategoryService) SeedDefaults(ctx context.Context) (int, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Category{}).Where("is_default = ?", true).Count(&count).Error; err != nil {
		return 0, storeError(err, "", "", "")
	}
	if count > 0 {
		return 0, nil
	}

	cats := make([]models.Category, len(defaultCategories))
	for i, c := range defaultCategories {
		c.IsDefault = true
		c.IsActive = true
		cats[i] = c
	}
	if err := s.db.WithContext(ctx).Create(&cats).Error; err != nil {
		return 0, storeError(err, "", CodeDuplicateName, "Categorie default già presenti")
	}
	s.log.Info("categorie default create", zap.Int("count", len(cats)))
	return len(cats), nil
}

const (
	categoryNotFoundMsg  = "Categoria non trovata o non modificabile"
	duplicateCategoryMsg = "Esiste già una categoria attiva con questo nome"
)

// owned loads a private category of userID; globals and foreign rows are NotFound
func (s *CategoryService) owned(ctx context.Context, id, userID uint) (*models.Category, error) {
	var cat models.Category
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ? AND is_default = ?", id, userID, false).
		First(&cat).Error
	if err != nil {
		return nil, storeError(err, categoryNotFoundMsg, "", "")
	}
	return &cat, nil
}

func (s *CategoryService) ensureNameFree(ctx context.Context, userID uint, name string, excludeID uint) error {
	var count int64
	q := s.db.WithContext(ctx).Model(&models.Category{}).
		Where("user_id = ? AND name = ? AND is_active = ?", userID, name, true)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return storeError(err, "", "", "")
	}
	if count > 0 {
		return ErrConflict(CodeDuplicateName, duplicateCategoryMsg)
	}
	return nil
}

// countReferencingReports counts the user's reports whose ledger uses name
func (s *CategoryService) countReferencingReports(ctx context.Context, userID uint, name string) (int64, error) {
	var reports []models.FinancialReport
	err := s.db.WithContext(ctx).
		Select("id", "ledger_income", "ledger_expense").
		Where("user_id = ?", userID).
		Find(&reports).Error
	if err != nil {
		return 0, storeError(err, "", "", "")
	}
	var n int64
	for _, r := range reports {
		if r.Ledger.References(name) {
			n++
		}
	}
	return n, nil
}

func normalizeCategoryName(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

func validateCategory(c *models.Category) error {
	var fe fieldErrors
	if fe.required("nome", c.Name, "Il nome della categoria è obbligatorio") {
		fe.maxLen("nome", c.Name, 50, "Il nome della categoria non può superare i 50 caratteri")
	}
	if !models.ValidCategoryType(c.Type) {
		fe.add("tipo", "Il tipo deve essere ENTRATE o USCITE")
	}
	fe.maxLen("descrizione", c.Description, 200, "La descrizione non può superare i 200 caratteri")
	fe.match("colore", c.Color, colorPattern, "Inserisci un colore esadecimale valido")
	return fe.err()
}
