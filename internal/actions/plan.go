// Package actions organizes locally fetched downloads into the media library.
//
// A run builds a Plan for the ready files of one download, lets the entry
// handlers rewrite where the files go, transfers them according to the
// category's action and finally lets the exit handlers record completion.
package actions

import (
	"path/filepath"

	"github.com/amaumene/torboxarr/internal/media"
	"github.com/amaumene/torboxarr/internal/models"
)

// Placement is the source and target of one file
type Placement struct {
	File   *models.File
	Source string
	Target string
}

// Plan is the organization plan of one download. Handlers never modify a Plan
// in place; the With* methods return updated copies.
type Plan struct {
	Download  *models.DownloadItem
	Category  *models.Category
	TargetDir string
	Files     []Placement
}

// NewPlan places every file flat under <category root>/<download name>
func NewPlan(download *models.DownloadItem, category *models.Category, files []*models.File) Plan {
	dir := filepath.Join(category.TargetDir, media.SanitizeDirName(download.Name))
	placements := make([]Placement, 0, len(files))
	for _, file := range files {
		source := file.LocalPath()
		placements = append(placements, Placement{
			File:   file,
			Source: source,
			Target: filepath.Join(dir, filepath.Base(source)),
		})
	}
	return Plan{
		Download:  download,
		Category:  category,
		TargetDir: dir,
		Files:     placements,
	}
}

// WithTargetDir moves every file flat under dir, keeping source names
func (p Plan) WithTargetDir(dir string) Plan {
	files := make([]Placement, len(p.Files))
	for i, placement := range p.Files {
		placement.Target = filepath.Join(dir, filepath.Base(placement.Source))
		files[i] = placement
	}
	p.TargetDir = dir
	p.Files = files
	return p
}

// WithFileName renames the target of file i inside the plan's target directory
func (p Plan) WithFileName(i int, name string) Plan {
	files := make([]Placement, len(p.Files))
	copy(files, p.Files)
	files[i].Target = filepath.Join(p.TargetDir, name)
	p.Files = files
	return p
}
