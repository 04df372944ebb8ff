package trainer

import (
	"fmt"

	"github.com/ctfquest/internal/domain"
)

// labUser is a row in the simulated user table. The object-action labs
// mutate these, so all access goes through the server lock.
type labUser struct {
	ID       int
	Username string
	Password string
	Role     string
	Email    string
	FullName string
}

// recipe is a row in the simulated recipe table. Hidden recipes only come
// back through injection payloads or by unlocking them directly; the
// object-action labs mutate lock state, so all access goes through the
// server lock.
type recipe struct {
	ID           int
	Name         string
	Chef         string
	Category     string
	OwnerID      int
	Hidden       bool
	Locked       bool
	LockPassword string
}

func (r recipe) toRow() domain.ResultRow {
	return domain.ResultRow{
		"id":        r.ID,
		"nombre":    r.Name,
		"chef":      r.Chef,
		"category":  r.Category,
		"user_id":   r.OwnerID,
		"bloqueada": r.Locked,
	}
}

// weakPasswords is the known-weak list the weak-auth lab checks against.
var weakPasswords = []string{
	"123456", "password", "admin", "1234", "test", "abuela123", "ChefObscuro123!",
}

func isWeakPassword(password string) bool {
	for _, w := range weakPasswords {
		if password == w {
			return true
		}
	}
	return false
}

// seedCatalog returns the vulnerability definitions with their flag tokens
// and point values.
func seedCatalog() []domain.CatalogEntry {
	return []domain.CatalogEntry{
		{
			ID:           domain.VulnIDORProfiles,
			Name:         "IDOR en Perfiles",
			Description:  "Acceso a perfiles de otros usuarios manipulando el parametro user_id.",
			Difficulty:   "facil",
			Points:       150,
			FlagToken:    "a1f5e9c2d8b34706915e8d2c4a7b1f3e",
			SolutionHint: "Prueba cambiar el user_id en la peticion de perfil.",
		},
		{
			ID:           domain.VulnInfoDisclosure,
			Name:         "Divulgacion de Informacion",
			Description:  "Los registros del sistema exponen credenciales y datos sensibles.",
			Difficulty:   "facil",
			Points:       80,
			FlagToken:    "b2e6f0d3c9a45817026f9e3d5b8c2a4f",
			SolutionHint: "Revisa los logs del sistema en busca de datos que no deberian estar ahi.",
		},
		{
			ID:           domain.VulnWeakAuth,
			Name:         "Autenticacion Debil",
			Description:  "Cuentas protegidas con contrasenas triviales o predecibles.",
			Difficulty:   "facil",
			Points:       120,
			FlagToken:    "c3f7a1e4d0b56928137a0f4e6c9d3b5a",
			SolutionHint: "Las contrasenas mas comunes siguen funcionando.",
		},
		{
			ID:           domain.VulnLoginBypass,
			Name:         "Bypass de Login",
			Description:  "El formulario de login concatena la entrada directamente en la consulta.",
			Difficulty:   "media",
			Points:       150,
			FlagToken:    "d4a8b2f5e1c67039248b1a5f7d0e4c6b",
			SolutionHint: "Una comilla y una condicion siempre verdadera bastan.",
		},
		{
			ID:           domain.VulnHiddenRecords,
			Name:         "Registros Ocultos",
			Description:  "El buscador de recetas permite saltarse el filtro de visibilidad.",
			Difficulty:   "media",
			Points:       180,
			FlagToken:    "e5b9c3a6f2d78140359c2b6a8e1f5d7c",
			SolutionHint: "Haz que la condicion del WHERE sea siempre verdadera.",
		},
		{
			ID:           domain.VulnUnionExtract,
			Name:         "Extraccion con UNION",
			Description:  "Un UNION SELECT en el buscador extrae filas de la tabla de usuarios.",
			Difficulty:   "dificil",
			Points:       220,
			FlagToken:    "f6c0d4b7a3e89251460d3c7b9f2a6e8d",
			SolutionHint: "Iguala el numero de columnas y apunta a la tabla users.",
		},
		{
			ID:           domain.VulnBlindBoolean,
			Name:         "Inyeccion Ciega Booleana",
			Description:  "Las condiciones verdaderas y falsas producen respuestas distintas.",
			Difficulty:   "dificil",
			Points:       250,
			FlagToken:    "a7d1e5c8b4f90362571e4d8ca3b7f9e0",
			SolutionHint: "Compara la respuesta de AND 1=1 contra AND 1=2.",
		},
		{
			ID:           domain.VulnRecipeLock,
			Name:         "IDOR en Bloqueo de Recetas",
			Description:  "Bloquea recetas de otros usuarios estableciendo contrasenas sin autorizacion.",
			Difficulty:   "media",
			Points:       200,
			FlagToken:    "b8e2f6d9c5a01473682f5e9db4c8a0f1",
			SolutionHint: "El endpoint de bloqueo no comprueba quien es el dueno de la receta.",
		},
		{
			ID:           domain.VulnPrivateRecipe,
			Name:         "IDOR en Recetas Privadas",
			Description:  "Accede a recetas privadas de otros usuarios manipulando el id.",
			Difficulty:   "media",
			Points:       180,
			FlagToken:    "c9f3a7e0d6b12584793a6f0ec5d9b1a2",
			SolutionHint: "Los ids son secuenciales y las contrasenas de bloqueo son debiles.",
		},
		{
			ID:           domain.VulnPasswordChange,
			Name:         "IDOR en Cambio de Contrasena",
			Description:  "Cambia la contrasena de otros usuarios sin autorizacion.",
			Difficulty:   "dificil",
			Points:       300,
			FlagToken:    "d0a4b8f1e7c23695804b7a1fd6e0c2b3",
			SolutionHint: "El endpoint de cambio de contrasena acepta cualquier user_id.",
		},
		{
			ID:           domain.VulnRecipeDelete,
			Name:         "IDOR en Eliminacion de Recetas",
			Description:  "Elimina recetas de otros usuarios sin autorizacion.",
			Difficulty:   "dificil",
			Points:       280,
			FlagToken:    "e1b5c9a2f8d34706915c8b2ae7f1d3c4",
			SolutionHint: "Prueba borrar recetas con ids que no te pertenecen.",
		},
	}
}

// seedUsers returns the simulated user table. The first entry is the visitor's
// own account for the profile lab; the rest are targets.
func seedUsers() []labUser {
	return []labUser{
		{ID: 1, Username: "juan_perez", Password: "password123", Role: "jugador", Email: "juan@example.com", FullName: "Juan Perez"},
		{ID: 2, Username: "admin", Password: "ChefObscuro123!", Role: "admin", Email: "admin@recetas.local", FullName: "Administrador"},
		{ID: 3, Username: "abuela", Password: "abuela123", Role: "jugador", Email: "abuela@recetas.local", FullName: "Abuela Rosa"},
		{ID: 4, Username: "chef_obscuro", Password: "DarkChef2024!", Role: "chef", Email: "chef@recetas.local", FullName: "Chef Obscuro"},
	}
}

// seedRecipes returns the recipe table. The hidden rows are the private
// recipes: reachable through the filter-bypass payload or by unlocking them
// with their deliberately weak lock passwords. Owner ids reference the user
// table; the visitor's own account is id 1.
func seedRecipes() []recipe {
	return []recipe{
		{ID: 1, Name: "Mole Poblano", Chef: "Abuela Rosa", Category: "tradicional", OwnerID: 3},
		{ID: 2, Name: "Tacos al Pastor", Chef: "Chef Obscuro", Category: "tradicional", OwnerID: 4},
		{ID: 3, Name: "Chiles en Nogada", Chef: "Abuela Rosa", Category: "temporada", OwnerID: 3},
		{ID: 4, Name: "Pozole Rojo", Chef: "Juan Perez", Category: "tradicional", OwnerID: 1},
		{ID: 5, Name: "Receta Secreta del Chef", Chef: "Chef Obscuro", Category: "secreta", OwnerID: 4, Hidden: true, Locked: true, LockPassword: "secreto"},
		{ID: 6, Name: "Salsa Prohibida de la Abuela", Chef: "Abuela Rosa", Category: "secreta", OwnerID: 3, Hidden: true, Locked: true, LockPassword: "abuela123"},
	}
}

// seedLogs returns the system log dump, including the careless entries with
// credentials in them that make the disclosure lab solvable.
func seedLogs() []domain.ResultRow {
	return []domain.ResultRow{
		{"id": 1, "level": "INFO", "event": "server_start", "details": "recipe service listening on :5000"},
		{"id": 2, "level": "INFO", "event": "login", "details": "user juan_perez logged in"},
		{"id": 3, "level": "DEBUG", "event": "auth_check", "details": "admin password verified: ChefObscuro123!"},
		{"id": 4, "level": "WARN", "event": "failed_login", "details": "3 failed attempts for user abuela"},
		{"id": 5, "level": "DEBUG", "event": "config_load", "details": "loaded flag storage backend"},
		{"id": 6, "level": "INFO", "event": "search", "details": "query executed in 12ms"},
	}
}

// demoNickname generates a deterministic nickname for seeded demo players.
func demoNickname(i int) string {
	prefixes := []string{"Shadow", "Cipher", "Null", "Root", "Ghost", "Byte", "Hex", "Zero"}
	return fmt.Sprintf("%s%d", prefixes[i%len(prefixes)], i+1)
}
