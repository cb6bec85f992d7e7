// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes a session transcript as Markdown or JSON.
//
// Exports are one-way snapshots for sharing; nothing reads them back.
//
//	t := export.FromStore(orch.Store(), orch.Config().Model)
//	exp, err := export.ForFormat("markdown", nil)
//	path, err := export.ExportToFile(t, exp, ".")
package export
