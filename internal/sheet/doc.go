// Package sheet decodes uploaded spreadsheets (.xlsx/.xlsm via excelize,
// .csv/.tsv via encoding/csv) into table.RawTable grids. Header detection and
// cleanup are left to package table.
package sheet
