package umcmd

import (
	"go.brendoncarroll.net/star"

	"myceliumweb.org/um/runlog"
	"myceliumweb.org/um/umvm"
)

var inspect = star.Command{
	Metadata: star.Metadata{
		Short: "print information about a program image and its previous runs",
	},
	Flags: []star.IParam{DBParam, limitParam},
	Pos:   []star.IParam{imageParam},
	F: func(c star.Context) error {
		ctx := c.Context
		db := DBParam.Load(c)
		defer db.Close()
		img, err := imageCache.Get(ctx, imageParam.Load(c))
		if err != nil {
			return err
		}
		c.Printf("FILE-SIZE: %d bytes\n", img.Size)
		c.Printf("WORDS: %d\n", len(img.Words))
		c.Printf("FINGERPRINT: %v\n", img.Fingerprint)
		if len(img.Words) > 0 {
			c.Printf("ENTRY: %08x %v\n", img.Words[0], umvm.Decode(img.Words[0]))
		}
		recs, err := runlog.ListByFingerprint(ctx, db, img.Fingerprint.String(), limitParam.Load(c))
		if err != nil {
			return err
		}
		if len(recs) > 0 {
			c.Printf("RUNS:\n")
			printRecords(c, recs)
		}
		return nil
	},
}

var history = star.Command{
	Metadata: star.Metadata{
		Short: "list recorded runs, most recent first",
	},
	Flags: []star.IParam{DBParam, limitParam},
	F: func(c star.Context) error {
		db := DBParam.Load(c)
		defer db.Close()
		recs, err := runlog.List(c.Context, db, limitParam.Load(c))
		if err != nil {
			return err
		}
		printRecords(c, recs)
		return nil
	},
}

func printRecords(c star.Context, recs []runlog.Record) {
	c.Printf("ID\tSTATUS\tSTEPS\tSTARTED\tIMAGE\n")
	for _, rec := range recs {
		c.Printf("%d\t%s\t%d\t%s\t%s\n", rec.ID, rec.Status, rec.Steps, rec.StartedAt, rec.Image)
		if rec.Fault != "" {
			c.Printf("\t%s\n", rec.Fault)
		}
	}
}
