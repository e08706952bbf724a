package wiki

import (
	"time"

	"gorm.io/gorm"
)

// Page is a maintenance wiki page persisted in the database. Content holds
// the raw markdown source, template markers included; rendered HTML is
// produced on demand and never stored.
type Page struct {
	gorm.Model
	Slug    string `gorm:"size:255;uniqueIndex:idx_pages_slug;not null"`
	Title   string `gorm:"size:255;not null"`
	Content string `gorm:"type:text;not null"`
}

// TableName defines the table name for the Page model.
func (Page) TableName() string {
	return "pages"
}

// TemplateOption is one row of the persisted option index: a valid
// option-capable template:action marker found in its page's current content.
// Rows are replaced wholesale on every page save and removed with the page,
// so the index never drifts from the content. No soft deletes here: the
// unique (page, template) index relies on replaced rows being gone.
type TemplateOption struct {
	ID           uint `gorm:"primarykey"`
	CreatedAt    time.Time
	PageID       uint   `gorm:"uniqueIndex:idx_template_options_page_name;index;not null"`
	TemplateName string `gorm:"size:255;uniqueIndex:idx_template_options_page_name;not null"`
	RecordType   string `gorm:"size:32;index;not null"`
	MachineSlug  string `gorm:"size:255"`
	LocationSlug string `gorm:"size:255"`
	Priority     string `gorm:"size:32"`
	Label        string `gorm:"size:255;not null"`
}

// TableName defines the table name for the TemplateOption model.
func (TemplateOption) TableName() string {
	return "template_options"
}
