package wiki

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Repository defines persistence operations for wiki pages and the derived
// template option index.
type Repository interface {
	GetBySlug(ctx context.Context, slug string) (*Page, error)
	GetByID(ctx context.Context, id uint) (*Page, error)
	CreateOrUpdate(ctx context.Context, page *Page) error
	Delete(ctx context.Context, id uint) error
	ListPages(ctx context.Context) ([]Page, error)
	ReplaceTemplateOptions(ctx context.Context, pageID uint, rows []TemplateOption) (int, error)
	ListTemplateOptions(ctx context.Context, recordType string) ([]TemplateOption, error)
	ListTemplateOptionsForPage(ctx context.Context, pageID uint) ([]TemplateOption, error)
}

// GormRepository persists pages using a Gorm database connection.
type GormRepository struct {
	db     *gorm.DB
	logger *logrus.Logger
}

// NewRepository constructs a Gorm-backed repository implementation.
func NewRepository(db *gorm.DB, logger *logrus.Logger) (*GormRepository, error) {
	if db == nil {
		return nil, eris.New("gorm DB is required")
	}

	return &GormRepository{db: db, logger: logger}, nil
}

var _ Repository = (*GormRepository)(nil)

// GetBySlug returns the page for the provided slug or nil when not found.
func (r *GormRepository) GetBySlug(ctx context.Context, slug string) (*Page, error) {
	trimmed := strings.TrimSpace(slug)
	if trimmed == "" {
		return nil, eris.New("slug is required")
	}

	var page Page
	err := r.db.WithContext(ctx).First(&page, "slug = ?", trimmed).Error
	if err != nil {
		if eris.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logError(logrus.Fields{"slug": trimmed}, err, "fetching page by slug")
		return nil, eris.Wrapf(err, "fetching page by slug: %s", trimmed)
	}

	return &page, nil
}

// GetByID returns the page for the provided primary key or nil when not found.
func (r *GormRepository) GetByID(ctx context.Context, id uint) (*Page, error) {
	if id == 0 {
		return nil, eris.New("page id is required")
	}

	var page Page
	err := r.db.WithContext(ctx).First(&page, id).Error
	if err != nil {
		if eris.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logError(logrus.Fields{"page_id": id}, err, "fetching page by id")
		return nil, eris.Wrapf(err, "fetching page by id: %d", id)
	}

	return &page, nil
}

// CreateOrUpdate stores the wiki page, inserting or updating the row as needed.
func (r *GormRepository) CreateOrUpdate(ctx context.Context, page *Page) error {
	if page == nil {
		return eris.New("page is nil")
	}

	if strings.TrimSpace(page.Slug) == "" {
		return eris.New("page slug is required")
	}

	page.Slug = strings.TrimSpace(page.Slug)

	if err := r.db.WithContext(ctx).Save(page).Error; err != nil {
		r.logError(logrus.Fields{"slug": page.Slug}, err, "saving page")
		return eris.Wrapf(err, "saving page: %s", page.Slug)
	}

	return nil
}

// Delete removes the page and its option index rows in one transaction.
func (r *GormRepository) Delete(ctx context.Context, id uint) error {
	if id == 0 {
		return eris.New("page id is required")
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("page_id = ?", id).Delete(&TemplateOption{}).Error; err != nil {
			return eris.Wrap(err, "deleting page template options")
		}
		if err := tx.Delete(&Page{}, id).Error; err != nil {
			return eris.Wrap(err, "deleting page")
		}
		return nil
	})
	if err != nil {
		r.logError(logrus.Fields{"page_id": id}, err, "deleting page")
		return eris.Wrapf(err, "deleting page: %d", id)
	}

	return nil
}

// ListPages returns every page ordered by slug.
func (r *GormRepository) ListPages(ctx context.Context) ([]Page, error) {
	var pages []Page

	if err := r.db.WithContext(ctx).Order("slug ASC").Find(&pages).Error; err != nil {
		r.logError(nil, err, "listing pages")
		return nil, eris.Wrap(err, "listing pages")
	}

	return pages, nil
}

// ReplaceTemplateOptions rebuilds the option index rows for one page: in a
// single transaction the previous rows are deleted and the replacements
// inserted, so two concurrent saves cannot interleave their delete+insert.
// It returns how many stale rows the rebuild removed, floored at zero.
func (r *GormRepository) ReplaceTemplateOptions(ctx context.Context, pageID uint, rows []TemplateOption) (int, error) {
	if pageID == 0 {
		return 0, eris.New("page id is required")
	}

	removed := 0
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&TemplateOption{}).Where("page_id = ?", pageID).Count(&existing).Error; err != nil {
			return eris.Wrap(err, "counting existing template options")
		}

		if err := tx.Where("page_id = ?", pageID).Delete(&TemplateOption{}).Error; err != nil {
			return eris.Wrap(err, "deleting stale template options")
		}

		if len(rows) > 0 {
			if err := tx.Create(&rows).Error; err != nil {
				return eris.Wrap(err, "inserting template options")
			}
		}

		removed = int(existing) - len(rows)
		if removed < 0 {
			removed = 0
		}
		return nil
	})
	if err != nil {
		r.logError(logrus.Fields{"page_id": pageID}, err, "replacing template options")
		return 0, eris.Wrapf(err, "replacing template options for page: %d", pageID)
	}

	return removed, nil
}

// ListTemplateOptions returns index rows for the record type, ordered by
// label for stable picker display. An empty record type returns all rows.
func (r *GormRepository) ListTemplateOptions(ctx context.Context, recordType string) ([]TemplateOption, error) {
	var options []TemplateOption

	query := r.db.WithContext(ctx).Order("label ASC")
	if trimmed := strings.TrimSpace(recordType); trimmed != "" {
		query = query.Where("record_type = ?", trimmed)
	}

	if err := query.Find(&options).Error; err != nil {
		r.logError(logrus.Fields{"record_type": recordType}, err, "listing template options")
		return nil, eris.Wrap(err, "listing template options")
	}

	return options, nil
}

// ListTemplateOptionsForPage returns the current index rows for one page.
func (r *GormRepository) ListTemplateOptionsForPage(ctx context.Context, pageID uint) ([]TemplateOption, error) {
	if pageID == 0 {
		return nil, eris.New("page id is required")
	}

	var options []TemplateOption
	if err := r.db.WithContext(ctx).Where("page_id = ?", pageID).Order("template_name ASC").Find(&options).Error; err != nil {
		r.logError(logrus.Fields{"page_id": pageID}, err, "listing page template options")
		return nil, eris.Wrapf(err, "listing template options for page: %d", pageID)
	}

	return options, nil
}

func (r *GormRepository) logError(fields logrus.Fields, err error, message string) {
	if r.logger == nil {
		return
	}

	entry := r.logger.WithField("error", err.Error())
	if len(fields) > 0 {
		entry = entry.WithFields(fields)
	}
	entry.Error(message)
}
