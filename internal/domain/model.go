package domain

import "time"

// User is an author identity with a unique username.
type User struct {
	ID           uint      `gorm:"primaryKey;autoIncrement"`
	Username     string    `gorm:"type:varchar(150);uniqueIndex;not null"`
	PasswordHash string    `gorm:"column:password_hash;not null"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
}

func (User) TableName() string { return "users" }

// Group is a named, slugged topic posts can be assigned to.
type Group struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	Title       string `gorm:"type:varchar(200);not null"`
	Slug        string `gorm:"type:varchar(100);uniqueIndex;not null"`
	Description string `gorm:"type:text"`
}

func (Group) TableName() string { return "groups" }

// Post belongs to exactly one author and at most one group.
// Image and ImageThumb are storage keys, empty when no attachment.
type Post struct {
	ID         uint      `gorm:"primaryKey;autoIncrement"`
	Text       string    `gorm:"type:text;not null"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index"`
	AuthorID   uint      `gorm:"not null;index"`
	Author     User      `gorm:"foreignKey:AuthorID"`
	GroupID    *uint     `gorm:"index"`
	Group      *Group    `gorm:"foreignKey:GroupID"`
	Image      string    `gorm:"type:varchar(255)"`
	ImageThumb string    `gorm:"type:varchar(255)"`
}

func (Post) TableName() string { return "posts" }

// Comment belongs to exactly one post and one author.
type Comment struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	Text      string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	AuthorID  uint      `gorm:"not null;index"`
	Author    User      `gorm:"foreignKey:AuthorID"`
	PostID    uint      `gorm:"not null;index"`
}

func (Comment) TableName() string { return "comments" }

// Follow is a directed edge: UserID (the follower) receives AuthorID's posts
// in their following feed. The composite unique index closes the
// duplicate-row race between concurrent follow requests.
type Follow struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	UserID    uint      `gorm:"not null;uniqueIndex:uidx_follow_pair"`
	AuthorID  uint      `gorm:"not null;uniqueIndex:uidx_follow_pair;index"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (Follow) TableName() string { return "follows" }
