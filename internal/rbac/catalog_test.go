package rbac

import "testing"

func TestCatalogLookup(t *testing.T) {
	catalog := NewCatalog([]Right{
		{ID: 10, Name: "inventory.view"},
		{ID: 11, Name: "inventory.edit"},
	})
	if catalog.Len() != 2 {
		t.Fatalf("len = %d", catalog.Len())
	}
	right, ok := catalog.Right(10)
	if !ok || right.Name != "inventory.view" {
		t.Fatalf("Right(10) = %+v ok=%v", right, ok)
	}
	right, ok = catalog.RightByName("inventory.edit")
	if !ok || right.ID != 11 {
		t.Fatalf("RightByName = %+v ok=%v", right, ok)
	}
	if _, ok := catalog.Right(99); ok {
		t.Fatal("unknown id must miss")
	}
}

func TestCatalogCollatedOrder(t *testing.T) {
	catalog := NewCatalog([]Right{
		{ID: 1, Name: "zutaten.view"},
		{ID: 2, Name: "Assets.edit"},
		{ID: 3, Name: "assets.view"},
	})
	rights := catalog.Rights()
	if rights[0].Name != "Assets.edit" || rights[1].Name != "assets.view" || rights[2].Name != "zutaten.view" {
		names := make([]string, 0, len(rights))
		for _, r := range rights {
			names = append(names, r.Name)
		}
		t.Fatalf("order = %v", names)
	}
}
