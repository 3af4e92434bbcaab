// Command bambangd is a small end-to-end demonstration of the storage
// core: create two tables, bulk-insert rows, run a predicate+projection
// scan, and hash-join the results — the SSB-style shape described in the
// design notes (LINEORDER joined to DATE on a date key, filtered by
// year).
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/bambang-db/bambang/internal/config"
	"github.com/bambang-db/bambang/internal/engine"
	"github.com/bambang-db/bambang/internal/join"
	"github.com/bambang-db/bambang/internal/predicate"
	"github.com/bambang-db/bambang/internal/row"
	"github.com/bambang-db/bambang/internal/scan"
	"github.com/bambang-db/bambang/internal/value"
)

func main() {
	dataDir := flag.String("data-dir", "./bambang-data", "directory holding table files")
	flag.Parse()

	cfg := config.Default()
	cfg.DataDir = *dataDir

	eng, err := engine.Open(cfg)
	if err != nil {
		log.Fatalf("open engine: %v", err)
	}
	defer eng.Close()

	dateSchema := row.NewSchema([]row.Column{
		{Name: "date_key", DataType: row.TypeInteger, PrimaryKey: true},
		{Name: "year", DataType: row.TypeInteger},
	})
	lineorderSchema := row.NewSchema([]row.Column{
		{Name: "order_id", DataType: row.TypeInteger, PrimaryKey: true},
		{Name: "order_date", DataType: row.TypeInteger},
		{Name: "extended_price", DataType: row.TypeFloat},
		{Name: "discount", DataType: row.TypeFloat},
	})

	if err := eng.CreateTable("date", dateSchema); err != nil {
		log.Fatalf("create table date: %v", err)
	}
	if err := eng.CreateTable("lineorder", lineorderSchema); err != nil {
		log.Fatalf("create table lineorder: %v", err)
	}

	var dateRows []row.Row
	for i, year := range []int64{1992, 1993, 1994, 1995, 1996, 1997, 1998} {
		dateKey := int64(19920101 + i*10000)
		dateRows = append(dateRows, row.Row{
			ID:   uint64(dateKey),
			Data: []value.Value{value.Integer(dateKey), value.Integer(year)},
		})
	}
	if _, err := eng.BatchInsert("date", dateRows); err != nil {
		log.Fatalf("insert date rows: %v", err)
	}

	var loRows []row.Row
	for i := 0; i < 100; i++ {
		dateKey := int64(19920101 + (i%7)*10000)
		loRows = append(loRows, row.Row{
			ID: uint64(i + 1),
			Data: []value.Value{
				value.Integer(int64(i + 1)),
				value.Integer(dateKey),
				value.Float(1000.0 + float64(i)),
				value.Float(0.05),
			},
		})
	}
	if _, err := eng.BatchInsert("lineorder", loRows); err != nil {
		log.Fatalf("insert lineorder rows: %v", err)
	}

	yearFilter, err := predicate.Compile(predicate.Eq("year", value.Integer(1993)), dateSchema)
	if err != nil {
		log.Fatalf("compile year filter: %v", err)
	}

	result, err := eng.Join(
		"lineorder", scan.Options{Schema: lineorderSchema},
		"date", scan.Options{Schema: dateSchema, Predicate: yearFilter},
		[]join.Condition{{LeftColumn: "order_date", RightColumn: "date_key"}},
		join.Inner,
	)
	if err != nil {
		log.Fatalf("join: %v", err)
	}

	var total float64
	priceIdx := result.Schema.IndexOf("extended_price")
	discountIdx := result.Schema.IndexOf("discount")
	for _, r := range result.Rows {
		price, _ := r.Data[priceIdx].AsFloat()
		discount, _ := r.Data[discountIdx].AsFloat()
		total += price * discount / 100
	}

	fmt.Fprintf(os.Stdout, "lineorder rows joined against 1993 dates: %d\n", result.Stats.OutputCount)
	fmt.Fprintf(os.Stdout, "sum(extended_price * discount / 100): %.4f\n", total)
}
