package domain

// Category is one of the fixed listing categories. Listings store the
// category Name.
type Category struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// DefaultCategoryID is used when a draft names an unknown category.
const DefaultCategoryID = "outros"

// Categories is the closed catalogue shown in the storefront.
var Categories = []Category{
	{ID: "eletronicos", Name: "Eletrônicos", Description: "Celulares, notebooks, consoles, periféricos"},
	{ID: "casa", Name: "Casa & Decoração", Description: "Móveis pequenos, utensílios, itens decorativos"},
	{ID: "ferramentas", Name: "Ferramentas & Construção", Description: "Ferramentas manuais, elétricas, equipamentos"},
	{ID: "musica", Name: "Instrumentos Musicais", Description: "Guitarras, teclados, baterias, violões e acessórios"},
	{ID: "veiculos", Name: "Peças & Acessórios", Description: "Peças automotivas, acessórios, bicicletas, motos (Sem registro oficial)"},
	{ID: "moda", Name: "Moda & Acessórios", Description: "Roupas, tênis, relógios, bolsas"},
	{ID: "colecionaveis", Name: "Colecionáveis", Description: "Cards, action figures, itens raros, cultura pop"},
	{ID: "games", Name: "Games", Description: "Jogos físicos, consoles antigos, acessórios"},
	{ID: "outros", Name: "Outros", Description: "Categoria geral"},
}

// CategoryByID looks up a category by its id.
func CategoryByID(id string) (Category, bool) {
	for _, c := range Categories {
		if c.ID == id {
			return c, true
		}
	}
	return Category{}, false
}

// CategoryByName looks up a category by its display name.
func CategoryByName(name string) (Category, bool) {
	for _, c := range Categories {
		if c.Name == name {
			return c, true
		}
	}
	return Category{}, false
}
