// Package catalog はコースカタログを提供する。
// カタログは外部から供給される読み取り専用データであり、コアは一切変更しない。
package catalog

import (
	"github.com/techwave/storefront/internal/model"
)

// Catalog はコースの読み取り専用カタログ。
type Catalog struct {
	courses []model.Course
	byID    map[int]model.Course
}

// New は指定コースでカタログを生成する。
func New(courses []model.Course) *Catalog {
	byID := make(map[int]model.Course, len(courses))
	for _, c := range courses {
		byID[c.ID] = c
	}
	return &Catalog{
		courses: courses,
		byID:    byID,
	}
}

// NewDefault は標準のコースカタログを生成する。
func NewDefault() *Catalog {
	return New(defaultCourses)
}

// List は全コースを返す（コピー）。
func (c *Catalog) List() []model.Course {
	out := make([]model.Course, len(c.courses))
	copy(out, c.courses)
	return out
}

// FindByID は指定IDのコースを返す。見つからない場合はfalseを返す。
func (c *Catalog) FindByID(id int) (model.Course, bool) {
	course, ok := c.byID[id]
	return course, ok
}

// defaultCourses は標準カタログのコースデータ。
var defaultCourses = []model.Course{
	{
		ID:            1,
		Title:         "Complete React Developer Course",
		Instructor:    "Sarah Johnson",
		Price:         89.99,
		OriginalPrice: 199.99,
		Image:         "https://placehold.co/400x225/1D4ED8/FFFFFF?text=React+Course",
		Level:         "Beginner to Advanced",
	},
	{
		ID:            2,
		Title:         "Advanced Node.js & Express",
		Instructor:    "Michael Chen",
		Price:         79.99,
		OriginalPrice: 149.99,
		Image:         "https://placehold.co/400x225/6366F1/FFFFFF?text=Node.js+Course",
		Level:         "Intermediate",
	},
	{
		ID:            3,
		Title:         "Full Stack TypeScript Mastery",
		Instructor:    "Emma Rodriguez",
		Price:         129.99,
		OriginalPrice: 249.99,
		Image:         "https://placehold.co/400x225/1D4ED8/FFFFFF?text=TypeScript+Course",
		Level:         "All Levels",
	},
	{
		ID:            4,
		Title:         "DevOps & CI/CD Pipeline",
		Instructor:    "David Kim",
		Price:         99.99,
		OriginalPrice: 179.99,
		Image:         "https://placehold.co/400x225/6366F1/FFFFFF?text=DevOps+Course",
		Level:         "Advanced",
	},
}
