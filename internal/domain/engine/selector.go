package engine

import "codecheck/internal/domain"

// SelectObjects filters the model down to the objects a rule applies to. A
// selector with object type "*" matches every object; HasProperties narrows
// the match to objects that actually carry the named properties.
func SelectObjects(model *domain.BuildingModel, sel domain.ObjectSelector) []domain.BuildingObject {
	var out []domain.BuildingObject
	for _, obj := range model.Objects {
		if sel.ObjectType != "*" && sel.ObjectType != obj.ObjectType {
			continue
		}
		if !hasAll(obj, sel.HasProperties) {
			continue
		}
		out = append(out, obj)
	}
	return out
}

func hasAll(obj domain.BuildingObject, props []string) bool {
	for _, p := range props {
		if _, ok := obj.Properties[p]; !ok {
			return false
		}
	}
	return true
}
