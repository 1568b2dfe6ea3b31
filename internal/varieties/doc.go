// Package varieties turns catalog entries into sort order definitions.
//
// Each catalog variety gets an InsertPolicy: newcomers go to the start or
// the end of the order, anchor keys are kept at the front in anchor order,
// and an optional extension filter narrows which members are orderable.
package varieties
