package main

import (
	"fmt"
	"time"

	"github.com/fwojciec/handbook"
	"github.com/fwojciec/handbook/sqlite"
)

// Run executes the list command.
func (c *ListCmd) Run(deps *Dependencies) error {
	docs := deps.Catalog.Documents()
	if len(docs) == 0 {
		fmt.Fprintln(deps.Stdout, "No handbooks configured. Add documents to the config file.")
		return nil
	}

	var infos map[string]*sqlite.SnapshotInfo
	if deps.Lister != nil {
		list, err := deps.Lister.ListSnapshots(deps.Ctx, sqlite.SnapshotFilter{})
		if err != nil {
			fmt.Fprintf(deps.Stderr, "error: %s\n", handbook.ErrorMessage(err))
			return err
		}
		infos = make(map[string]*sqlite.SnapshotInfo, len(list))
		for _, info := range list {
			infos[info.DocumentID] = info
		}
	}

	for _, d := range docs {
		fmt.Fprintf(deps.Stdout, "%s  %s  %d departments  %s\n", d.ID, d.Name, len(d.Departments), c.status(deps, d.ID, infos))
	}
	return nil
}

func (c *ListCmd) status(deps *Dependencies, id string, infos map[string]*sqlite.SnapshotInfo) string {
	if deps.Snapshots == nil {
		return "snapshots disabled"
	}
	if infos != nil {
		info, ok := infos[id]
		if !ok {
			return "no snapshot"
		}
		return fmt.Sprintf("%d pages (%s)", info.PageCount, info.CreatedAt.Local().Format(time.DateTime))
	}

	corpus, err := deps.Snapshots.FindSnapshot(deps.Ctx, id)
	switch handbook.ErrorCode(err) {
	case "":
		return fmt.Sprintf("%d pages", corpus.PageCount())
	case handbook.ENOTFOUND:
		return "no snapshot"
	default:
		return "unreadable snapshot"
	}
}
