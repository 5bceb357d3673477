package db

import (
	"time"

	"gorm.io/datatypes"
)

// Movement maps nrm.movements. canonical_slug is the stable external key;
// display_name carries the official form with diacritics.
type Movement struct {
	MovementID       int64          `gorm:"column:movement_id;primaryKey;autoIncrement"`
	MovementUUID     string         `gorm:"column:movement_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	CanonicalSlug    string         `gorm:"column:canonical_slug;type:text;not null;unique"`
	DisplayName      *string        `gorm:"column:display_name;type:text"`
	Category         *string        `gorm:"column:category;type:text"`
	Description      *string        `gorm:"column:description;type:text"`
	ActiveStatus     *string        `gorm:"column:active_status;type:text"`
	Website          *string        `gorm:"column:website;type:text"`
	KeywordsMatched  datatypes.JSON `gorm:"column:keywords_matched;type:jsonb"`
	SentimentOverall *float64       `gorm:"column:sentiment_overall;type:double precision"`
	CreatedAt        time.Time      `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt        time.Time      `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (Movement) TableName() string { return "nrm.movements" }

// Alias maps nrm.aliases. (movement_id, alias_text) is unique so alias
// inserts are idempotent.
type Alias struct {
	AliasID         int64     `gorm:"column:alias_id;primaryKey;autoIncrement"`
	AliasUUID       string    `gorm:"column:alias_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	MovementID      int64     `gorm:"column:movement_id;type:bigint;not null;uniqueIndex:ux_aliases_movement_alias"`
	AliasText       string    `gorm:"column:alias_text;type:text;not null;uniqueIndex:ux_aliases_movement_alias"`
	AliasType       string    `gorm:"column:alias_type;type:text;not null;default:predefined"`
	ConfidenceScore *float64  `gorm:"column:confidence_score;type:double precision"`
	CreatedAt       time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (Alias) TableName() string { return "nrm.aliases" }

// Source maps nrm.sources. movement_id stays NULL until the matcher assigns
// one; content_hash stays NULL until text is available.
type Source struct {
	SourceID            int64          `gorm:"column:source_id;primaryKey;autoIncrement"`
	SourceUUID          string         `gorm:"column:source_uuid;type:uuid;not null;default:gen_random_uuid();unique"`
	MovementID          *int64         `gorm:"column:movement_id;type:bigint;index"`
	SourceName          *string        `gorm:"column:source_name;type:text"`
	SourceType          *string        `gorm:"column:source_type;type:text"`
	Domain              *string        `gorm:"column:domain;type:text;index"`
	Language            *string        `gorm:"column:language;type:text"`
	PublicationDate     *time.Time     `gorm:"column:publication_date;type:timestamptz"`
	URL                 string         `gorm:"column:url;type:text;not null;unique"`
	ContentExcerpt      *string        `gorm:"column:content_excerpt;type:text"`
	ContentFull         *string        `gorm:"column:content_full;type:text"`
	WordCount           *int           `gorm:"column:word_count;type:integer"`
	ContentHash         *string        `gorm:"column:content_hash;type:text"`
	ScrapedBy           *string        `gorm:"column:scraped_by;type:text"`
	KeywordsFound       datatypes.JSON `gorm:"column:keywords_found;type:jsonb"`
	SentimentScore      *float64       `gorm:"column:sentiment_score;type:double precision"`
	ClassificationLabel *string        `gorm:"column:classification_label;type:text"`
	CreatedAt           time.Time      `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt           time.Time      `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (Source) TableName() string { return "nrm.sources" }

func autoMigrateModels() []any {
	return []any{
		&Movement{},
		&Alias{},
		&Source{},
	}
}
