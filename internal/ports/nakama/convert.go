package nakama

import (
	"rosterd/internal/domain"
	"rosterd/internal/textfmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// boardToStruct renders a board for OpBoardSync. Decoration text is delivered
// with section-sign colour codes.
func boardToStruct(b *domain.Board) (*structpb.Struct, error) {
	view := b.View()
	groups := make([]interface{}, 0, len(view))
	for _, g := range view {
		members := make([]interface{}, 0, len(g.Members))
		for _, m := range g.Members {
			members = append(members, m)
		}
		groups = append(groups, map[string]interface{}{
			"name":          g.Name,
			"prefix":        textfmt.Translate(g.Decoration.Prefix),
			"suffix":        textfmt.Translate(g.Decoration.Suffix),
			"color":         g.Decoration.Color,
			"visibility":    string(g.Decoration.NameTagVisibility),
			"collision":     string(g.Options.Collision),
			"friendly_fire": g.Options.FriendlyFire,
			"see_invisible": g.Options.SeeFriendlyInvisibles,
			"members":       members,
		})
	}
	return structpb.NewStruct(map[string]interface{}{
		"board":    b.ID(),
		"revision": b.Revision(),
		"groups":   groups,
	})
}

// labelsToStruct renders label changes for OpLabels. A reset label is sent as null.
func labelsToStruct(changes map[string]*string) (*structpb.Struct, error) {
	labels := make(map[string]interface{}, len(changes))
	for id, label := range changes {
		if label == nil {
			labels[id] = nil
			continue
		}
		labels[id] = textfmt.Translate(*label)
	}
	return structpb.NewStruct(map[string]interface{}{"labels": labels})
}

// headerFooterToStruct renders a header and footer for OpHeaderFooter.
func headerFooterToStruct(header, footer string) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]interface{}{
		"header": textfmt.Translate(header),
		"footer": textfmt.Translate(footer),
	})
}

// sidebarToStruct renders a sidebar panel for OpSidebar.
func sidebarToStruct(panel domain.Sidebar, visible bool) (*structpb.Struct, error) {
	lines := make([]interface{}, 0, len(panel.Lines))
	for _, l := range panel.Lines {
		lines = append(lines, textfmt.Translate(l))
	}
	return structpb.NewStruct(map[string]interface{}{
		"visible": visible,
		"title":   textfmt.Translate(panel.Title),
		"lines":   lines,
	})
}

// matchLabel renders the Nakama match label used by roster_find queries.
func matchLabel(population int, rankingEnabled bool) (string, error) {
	label := domain.ComputeLabel(population, rankingEnabled)
	s, err := structpb.NewStruct(map[string]interface{}{
		"kind":       label.Kind,
		"population": label.Population,
		"ranking":    label.Ranking,
	})
	if err != nil {
		return "", err
	}
	data, err := (&protojson.MarshalOptions{EmitUnpopulated: true}).Marshal(s)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
