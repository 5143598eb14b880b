package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/xuri/excelize/v2"
)

var zones = []string{"А", "Б", "В", "Г", "Д"}

const terminal = "Ч"

func main() {
	out := flag.String("out", "sample_zones.xlsx", "Output workbook")
	entities := flag.Int("entities", 200, "Number of entities to generate")
	seed := flag.Int64("seed", 1, "Random seed")
	flag.Parse()

	if err := generate(*out, *entities, rand.New(rand.NewSource(*seed))); err != nil {
		log.Fatalf("generate sample workbook: %v", err)
	}
	log.Printf("sample workbook written to %s", *out)
}

func generate(path string, entities int, rng *rand.Rand) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Sheet1"
	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return err
	}
	if err := sw.SetRow("A1", []interface{}{"ИНН", "Зона", "Дата_утверждения"}); err != nil {
		return err
	}

	dateStyle, err := f.NewStyle(&excelize.Style{NumFmt: 14})
	if err != nil {
		return err
	}

	row := 2
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < entities; i++ {
		inn := fmt.Sprintf("77%08d", rng.Intn(100000000))
		date := start.AddDate(0, 0, rng.Intn(90))
		steps := 1 + rng.Intn(5)
		for s := 0; s < steps; s++ {
			zone := zones[rng.Intn(len(zones))]
			if s == steps-1 && rng.Intn(3) > 0 {
				zone = terminal
			}
			cell, err := excelize.CoordinatesToCellName(1, row)
			if err != nil {
				return err
			}
			values := []interface{}{inn, zone, excelize.Cell{StyleID: dateStyle, Value: date}}
			if err := sw.SetRow(cell, values); err != nil {
				return err
			}
			row++
			date = date.AddDate(0, 0, 1+rng.Intn(40))
		}
	}
	if err := sw.Flush(); err != nil {
		return err
	}
	return f.SaveAs(path)
}
