// Package textutil provides text normalization and file name helpers.
//
// Normalize and FoldKey give vendor names, header labels and violation text a
// stable comparison form (NFKC, control characters removed, whitespace
// collapsed, case folded). SanitizeFileName and DocumentStem turn uploaded
// file names into safe export names.
package textutil
