// Package sources builds submittable records from external metadata files.
package sources

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/speccoll/arkmint/pkg/anvl"
	"github.com/speccoll/arkmint/pkg/core/domain"
)

// ReadTSV loads one record per data row from a tab-separated file with at
// least the headers dc.creator, dc.title, dc.date, _target and dc.type.
// When the file has no dc.publisher column, publisher fills it in.
func ReadTSV(path, publisher string) ([]*anvl.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("tsv %s: missing header row", path)
	}
	keys := strings.Split(strings.TrimRight(scanner.Text(), "\r\n"), "\t")

	var recs []*anvl.Record
	line := 1
	for scanner.Scan() {
		line++
		row := strings.TrimRight(scanner.Text(), "\r\n")
		if row == "" {
			continue
		}

		values := strings.Split(row, "\t")
		md := make(map[string]string, len(keys))
		for i, key := range keys {
			if i < len(values) {
				md[key] = values[i]
			}
		}
		if _, ok := md[domain.FieldDCPublisher]; !ok {
			md[domain.FieldDCPublisher] = publisher
		}

		var missing []string
		for _, required := range []string{domain.FieldDCCreator, domain.FieldDCTitle, domain.FieldDCDate, domain.FieldTarget, domain.FieldDCType} {
			if _, ok := md[required]; !ok {
				missing = append(missing, required)
			}
		}
		if len(missing) > 0 {
			return nil, fmt.Errorf("tsv %s line %d: missing columns %s", path, line, strings.Join(missing, ", "))
		}

		recs = append(recs, buildRecord(md))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return recs, nil
}

// buildRecord lays the fields out in the order the registry displays them:
// the ERC trio mirrors the Dublin Core creator/title/date, and both sets are
// always written together so either metadata profile renders.
func buildRecord(md map[string]string) *anvl.Record {
	rec := anvl.NewRecord()
	rec.Set(domain.FieldERCWho, md[domain.FieldDCCreator])
	rec.Set(domain.FieldERCWhat, md[domain.FieldDCTitle])
	rec.Set(domain.FieldERCWhen, md[domain.FieldDCDate])
	rec.Set(domain.FieldDCCreator, md[domain.FieldDCCreator])
	rec.Set(domain.FieldDCTitle, md[domain.FieldDCTitle])
	rec.Set(domain.FieldDCPublisher, md[domain.FieldDCPublisher])
	rec.Set(domain.FieldDCDate, md[domain.FieldDCDate])
	rec.Set(domain.FieldDCType, md[domain.FieldDCType])
	rec.Set(domain.FieldTarget, md[domain.FieldTarget])
	rec.Set(domain.FieldProfile, "dc")
	return rec
}
