package models

// Category is the policy applied to downloads of one kind: where files go and how they get there
type Category struct {
	ID        uint64 `boltholdKey:"ID"`
	Name      string `boltholdIndex:"Name"`
	Action    ActionKind
	TargetDir string
}
