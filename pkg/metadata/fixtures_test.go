package metadata

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

type PostCategory struct {
	ID   int
	Name string
}

type Audit struct {
	CreatedAt time.Time `po:"created_at,createdAt"`
	UpdatedAt time.Time `po:"updated_at,updatedAt"`
}

func (a *Audit) BeforeUpdate(ctx context.Context) error { return nil }

type Author struct {
	Audit
	ID    uuid.UUID `po:"id,primaryKey"`
	Name  string    `po:"name,varchar(80)"`
	Email string    `po:"email,unique,nullable"`
	notes string
}

func (Author) TableName() string { return "authors" }

type Article struct {
	Audit
	ID       int64     `po:"id,primaryKey,autoIncrement"`
	AuthorID uuid.UUID `po:"author_id,fk:authors.id,onDelete:cascade"`
	Title    string    `po:",varchar(200)"`
	Body     string    `po:"body,text,nullable"`
	Price    float64   `po:"price,numeric(10,2),default(0)"`
	Draft    bool      `po:"draft,default(true)"`
	Ignored  string    `po:"-"`
	Untagged string

	loaded bool
}

func (a *Article) AfterLoad(ctx context.Context) error {
	a.loaded = true
	return nil
}

func (a *Article) BeforeInsert(ctx context.Context) error {
	if a.Title == "" {
		return errBlankTitle
	}
	return nil
}

// not a hook: wrong signature
func (a *Article) AfterInsert() {}

var errBlankTitle = errors.New("blank title")

type Opaque struct {
	ID      int
	Payload chan int
}

type Node struct {
	ID       int
	ParentID *int
}

type Base struct {
	ID int
}

type Derived struct {
	Base
	Label string
}

type Linked struct {
	*Base
	Label string
}
