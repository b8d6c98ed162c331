// Package recipes implements the recipe endpoints. Recipes are owned by
// the user who created them and carry optional many-to-many links to
// that same user's tags and ingredients, plus an optional uploaded
// image. Create and update accept either JSON or multipart form data;
// multipart is only required when an image file is attached.
package recipes

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/joseluisbezerra/recipe-api/pkg/recipe/auth"
	"github.com/joseluisbezerra/recipe-api/pkg/recipe/media"
	"github.com/joseluisbezerra/recipe-api/pkg/recipe/models"
	"github.com/joseluisbezerra/recipe-api/pkg/recipe/validation"
)

// Handler handles recipe-related requests
type Handler struct {
	db        *gorm.DB
	storage   *media.Storage
	urlPrefix string
}

// NewHandler creates a new recipe handler. urlPrefix is the public path
// under which stored images are served, e.g. "/media/recipes".
func NewHandler(db *gorm.DB, storage *media.Storage, urlPrefix string) *Handler {
	return &Handler{db: db, storage: storage, urlPrefix: urlPrefix}
}

// RecipePayload is the JSON create/update request body. Every field is
// a pointer so that an absent key can be told apart from a zero value,
// which is what makes PATCH and the keep-associations-when-omitted
// rules work.
type RecipePayload struct {
	Title       *string  `json:"title"`
	TimeMinutes *int     `json:"time_minutes"`
	Price       *float64 `json:"price"`
	Link        *string  `json:"link"`
	Tags        *[]uint  `json:"tags"`
	Ingredients *[]uint  `json:"ingredients"`
}

// RecipeResponse is the list and write response shape, with tags and
// ingredients as bare id arrays.
type RecipeResponse struct {
	ID          uint    `json:"id"`
	Title       string  `json:"title"`
	TimeMinutes int     `json:"time_minutes"`
	Price       float64 `json:"price"`
	Link        string  `json:"link"`
	Tags        []uint  `json:"tags"`
	Ingredients []uint  `json:"ingredients"`
	Image       *string `json:"image"`
}

// TagRef is an expanded tag in the detail response
type TagRef struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

// IngredientRef is an expanded ingredient in the detail response
type IngredientRef struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

// RecipeDetailResponse is the single-recipe shape, with tags and
// ingredients expanded to objects.
type RecipeDetailResponse struct {
	ID          uint            `json:"id"`
	Title       string          `json:"title"`
	TimeMinutes int             `json:"time_minutes"`
	Price       float64         `json:"price"`
	Link        string          `json:"link"`
	Tags        []TagRef        `json:"tags"`
	Ingredients []IngredientRef `json:"ingredients"`
	Image       *string         `json:"image"`
}

func (h *Handler) imageURL(recipe models.Recipe) *string {
	if recipe.Image == "" {
		return nil
	}
	url := media.URLPath(h.urlPrefix, recipe.Image)
	return &url
}

func (h *Handler) recipeToResponse(recipe models.Recipe) RecipeResponse {
	tagIDs := make([]uint, len(recipe.Tags))
	for i, tag := range recipe.Tags {
		tagIDs[i] = tag.ID
	}
	ingredientIDs := make([]uint, len(recipe.Ingredients))
	for i, ingredient := range recipe.Ingredients {
		ingredientIDs[i] = ingredient.ID
	}
	return RecipeResponse{
		ID:          recipe.ID,
		Title:       recipe.Title,
		TimeMinutes: recipe.TimeMinutes,
		Price:       recipe.Price,
		Link:        recipe.Link,
		Tags:        tagIDs,
		Ingredients: ingredientIDs,
		Image:       h.imageURL(recipe),
	}
}

func (h *Handler) recipeToDetailResponse(recipe models.Recipe) RecipeDetailResponse {
	tags := make([]TagRef, len(recipe.Tags))
	for i, tag := range recipe.Tags {
		tags[i] = TagRef{ID: tag.ID, Name: tag.Name}
	}
	ingredients := make([]IngredientRef, len(recipe.Ingredients))
	for i, ingredient := range recipe.Ingredients {
		ingredients[i] = IngredientRef{ID: ingredient.ID, Name: ingredient.Name}
	}
	return RecipeDetailResponse{
		ID:          recipe.ID,
		Title:       recipe.Title,
		TimeMinutes: recipe.TimeMinutes,
		Price:       recipe.Price,
		Link:        recipe.Link,
		Tags:        tags,
		Ingredients: ingredients,
		Image:       h.imageURL(recipe),
	}
}

// recipeInput is the decoded body of a create or update request,
// independent of whether it arrived as JSON or multipart. Nil pointers
// mean the key was absent.
type recipeInput struct {
	Title       *string
	TimeMinutes *int
	Price       *float64
	Link        *string
	Tags        *[]uint
	Ingredients *[]uint
	Image       []byte
}

// bindInput decodes the request body. Parse failures for individual
// fields are collected rather than aborting, so a multipart form with a
// bad number and a missing title reports both.
func (h *Handler) bindInput(c *gin.Context) (recipeInput, validation.Errors) {
	if c.ContentType() == "multipart/form-data" {
		return bindMultipart(c)
	}

	var payload RecipePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		return recipeInput{}, validation.FromBinding(err)
	}
	in := recipeInput{
		Title:       payload.Title,
		TimeMinutes: payload.TimeMinutes,
		Price:       payload.Price,
		Link:        payload.Link,
		Tags:        payload.Tags,
		Ingredients: payload.Ingredients,
	}
	return in, validation.New()
}

func bindMultipart(c *gin.Context) (recipeInput, validation.Errors) {
	errs := validation.New()
	var in recipeInput

	form, err := c.MultipartForm()
	if err != nil {
		errs.Add("non_field_errors", "invalid request body")
		return in, errs
	}

	if vals, ok := form.Value["title"]; ok && len(vals) > 0 {
		in.Title = &vals[0]
	}
	if vals, ok := form.Value["link"]; ok && len(vals) > 0 {
		in.Link = &vals[0]
	}
	if vals, ok := form.Value["time_minutes"]; ok && len(vals) > 0 {
		n, err := strconv.Atoi(strings.TrimSpace(vals[0]))
		if err != nil {
			errs.Add("time_minutes", "must be a valid integer")
		} else {
			in.TimeMinutes = &n
		}
	}
	if vals, ok := form.Value["price"]; ok && len(vals) > 0 {
		f, err := strconv.ParseFloat(strings.TrimSpace(vals[0]), 64)
		if err != nil {
			errs.Add("price", "must be a valid number")
		} else {
			in.Price = &f
		}
	}
	if vals, ok := form.Value["tags"]; ok {
		ids := parseFormIDs(vals, "tags", errs)
		in.Tags = &ids
	}
	if vals, ok := form.Value["ingredients"]; ok {
		ids := parseFormIDs(vals, "ingredients", errs)
		in.Ingredients = &ids
	}

	if files, ok := form.File["image"]; ok && len(files) > 0 {
		data, err := readUpload(files[0])
		if err != nil {
			errs.Add("image", "could not read uploaded file")
		} else {
			in.Image = data
		}
	} else if _, ok := form.Value["image"]; ok {
		// A plain string in the image field is not a file upload
		errs.Add("image", "not a valid image")
	}

	return in, errs
}

// parseFormIDs reads an id list from multipart form values. Both
// repeated fields (tags=1&tags=2) and comma-separated values work.
func parseFormIDs(vals []string, field string, errs validation.Errors) []uint {
	ids := make([]uint, 0, len(vals))
	for _, val := range vals {
		for _, part := range strings.Split(val, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseUint(part, 10, 32)
			if err != nil {
				errs.Add(field, fmt.Sprintf("%q is not a valid id", part))
				continue
			}
			ids = append(ids, uint(id))
		}
	}
	return ids
}

func readUpload(file *multipart.FileHeader) ([]byte, error) {
	f, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// titleTaken reports whether the user already has another recipe with
// this title. excludeID skips the recipe being updated so resubmitting
// the current title is not flagged.
func (h *Handler) titleTaken(userID uint, title string, excludeID uint) bool {
	query := h.db.Model(&models.Recipe{}).Where("user_id = ? AND title = ?", userID, title)
	if excludeID != 0 {
		query = query.Where("id != ?", excludeID)
	}
	var count int64
	query.Count(&count)
	return count > 0
}

// validateInput checks the scalar fields. With required set (POST and
// PUT), title, time_minutes and price must all be present.
func (h *Handler) validateInput(userID uint, in recipeInput, excludeID uint, required bool, errs validation.Errors) {
	if in.Title == nil {
		if required {
			errs.Add("title", "this field is required")
		}
	} else if strings.TrimSpace(*in.Title) == "" {
		errs.Add("title", "must not be blank")
	} else if h.titleTaken(userID, strings.TrimSpace(*in.Title), excludeID) {
		errs.Add("title", "you already have a recipe with this title")
	}

	if in.TimeMinutes == nil {
		if required {
			errs.Add("time_minutes", "this field is required")
		}
	} else if *in.TimeMinutes <= 0 {
		errs.Add("time_minutes", "must be greater than 0")
	}

	if in.Price == nil {
		if required {
			errs.Add("price", "this field is required")
		}
	} else if *in.Price < 0 {
		errs.Add("price", "must be 0 or more")
	}
}

// resolveTags loads the requester's tags for the submitted ids. Every
// id that does not resolve is reported on its own; another user's tag
// reads the same as a missing one.
func (h *Handler) resolveTags(userID uint, ids []uint, errs validation.Errors) []models.Tag {
	tags := make([]models.Tag, 0, len(ids))
	seen := make(map[uint]bool)
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		var tag models.Tag
		if err := h.db.Where("id = ? AND user_id = ?", id, userID).First(&tag).Error; err != nil {
			errs.Add("tags", fmt.Sprintf("tag %d does not exist", id))
			continue
		}
		tags = append(tags, tag)
	}
	return tags
}

func (h *Handler) resolveIngredients(userID uint, ids []uint, errs validation.Errors) []models.Ingredient {
	ingredients := make([]models.Ingredient, 0, len(ids))
	seen := make(map[uint]bool)
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		var ingredient models.Ingredient
		if err := h.db.Where("id = ? AND user_id = ?", id, userID).First(&ingredient).Error; err != nil {
			errs.Add("ingredients", fmt.Sprintf("ingredient %d does not exist", id))
			continue
		}
		ingredients = append(ingredients, ingredient)
	}
	return ingredients
}

// List returns the user's recipes
// @Summary List recipes
// @Description List the authenticated user's recipes, optionally filtered by tag or ingredient ids
// @Tags recipes
// @Produce json
// @Param tags query string false "Comma-separated tag ids; recipes matching any listed tag"
// @Param ingredients query string false "Comma-separated ingredient ids; recipes matching any listed ingredient"
// @Success 200 {array} RecipeResponse
// @Failure 400 {object} map[string]string "Invalid filter"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Security BearerAuth
// @Router /recipes [get]
func (h *Handler) List(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	query := h.db.Preload("Tags").Preload("Ingredients").
		Where("recipes.user_id = ?", userID).
		Order("recipes.id")

	joined := false
	if raw := c.Query("tags"); raw != "" {
		ids, ok := parseFilterIDs(raw)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid tags filter"})
			return
		}
		query = query.Joins("INNER JOIN recipe_tags ON recipe_tags.recipe_id = recipes.id").
			Where("recipe_tags.tag_id IN ?", ids)
		joined = true
	}
	if raw := c.Query("ingredients"); raw != "" {
		ids, ok := parseFilterIDs(raw)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ingredients filter"})
			return
		}
		query = query.Joins("INNER JOIN recipe_ingredients ON recipe_ingredients.recipe_id = recipes.id").
			Where("recipe_ingredients.ingredient_id IN ?", ids)
		joined = true
	}
	if joined {
		// A recipe carrying two of the filtered ids would otherwise
		// come back as two rows
		query = query.Group("recipes.id")
	}

	var recipes []models.Recipe
	if err := query.Find(&recipes).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch recipes"})
		return
	}

	responses := make([]RecipeResponse, len(recipes))
	for i, recipe := range recipes {
		responses[i] = h.recipeToResponse(recipe)
	}
	c.JSON(http.StatusOK, responses)
}

// parseFilterIDs splits a comma-separated id list from the query string.
func parseFilterIDs(raw string) ([]uint, bool) {
	parts := strings.Split(raw, ",")
	ids := make([]uint, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			return nil, false
		}
		ids = append(ids, uint(id))
	}
	return ids, true
}

// Create creates a new recipe
// @Summary Create a recipe
// @Description Create a recipe, optionally attaching owned tag and ingredient ids and an image file
// @Tags recipes
// @Accept json,mpfd
// @Produce json
// @Param request body RecipePayload true "Recipe fields"
// @Success 201 {object} RecipeResponse
// @Failure 400 {object} map[string][]string "Validation errors"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Security BearerAuth
// @Router /recipes [post]
func (h *Handler) Create(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	in, errs := h.bindInput(c)
	h.validateInput(userID, in, 0, true, errs)

	var tags []models.Tag
	if in.Tags != nil {
		tags = h.resolveTags(userID, *in.Tags, errs)
	}
	var ingredients []models.Ingredient
	if in.Ingredients != nil {
		ingredients = h.resolveIngredients(userID, *in.Ingredients, errs)
	}

	imageExt := ""
	if in.Image != nil {
		ext, err := media.DetectImage(in.Image)
		if err != nil {
			errs.Add("image", "not a valid image")
		} else {
			imageExt = ext
		}
	}

	if errs.Any() {
		c.JSON(http.StatusBadRequest, gin.H{"errors": errs})
		return
	}

	filename := ""
	if in.Image != nil {
		name, err := h.storage.SaveImage(in.Image, imageExt)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store image"})
			return
		}
		filename = name
	}

	recipe := models.Recipe{
		UserID:      userID,
		Title:       strings.TrimSpace(*in.Title),
		TimeMinutes: *in.TimeMinutes,
		Price:       *in.Price,
		Image:       filename,
		Tags:        tags,
		Ingredients: ingredients,
	}
	if in.Link != nil {
		recipe.Link = strings.TrimSpace(*in.Link)
	}

	// Create writes the recipe row and its join rows in a single
	// transaction, so a failure leaves nothing behind
	if err := h.db.Create(&recipe).Error; err != nil {
		if filename != "" {
			_ = h.storage.Delete(filename)
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create recipe"})
		return
	}

	c.JSON(http.StatusCreated, h.recipeToResponse(recipe))
}

// Get returns a single recipe
// @Summary Get a recipe
// @Description Get one of the authenticated user's recipes with tags and ingredients expanded
// @Tags recipes
// @Produce json
// @Param id path int true "Recipe ID"
// @Success 200 {object} RecipeDetailResponse
// @Failure 400 {object} map[string]string "Invalid ID"
// @Failure 404 {object} map[string]string "Recipe not found"
// @Security BearerAuth
// @Router /recipes/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid recipe ID"})
		return
	}

	// Another user's recipe is indistinguishable from a missing one
	var recipe models.Recipe
	if err := h.db.Preload("Tags").Preload("Ingredients").
		Where("id = ? AND user_id = ?", id, userID).First(&recipe).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Recipe not found"})
		return
	}

	c.JSON(http.StatusOK, h.recipeToDetailResponse(recipe))
}

// Update fully updates a recipe
// @Summary Update a recipe
// @Description Replace a recipe's fields; omitting tags or ingredients leaves those associations unchanged
// @Tags recipes
// @Accept json,mpfd
// @Produce json
// @Param id path int true "Recipe ID"
// @Param request body RecipePayload true "Updated recipe fields"
// @Success 200 {object} RecipeResponse
// @Failure 400 {object} map[string][]string "Validation errors"
// @Failure 404 {object} map[string]string "Recipe not found"
// @Security BearerAuth
// @Router /recipes/{id} [put]
func (h *Handler) Update(c *gin.Context) {
	h.update(c, true)
}

// Patch partially updates a recipe
// @Summary Partially update a recipe
// @Description Update only the submitted recipe fields
// @Tags recipes
// @Accept json,mpfd
// @Produce json
// @Param id path int true "Recipe ID"
// @Param request body RecipePayload true "Recipe fields to change"
// @Success 200 {object} RecipeResponse
// @Failure 400 {object} map[string][]string "Validation errors"
// @Failure 404 {object} map[string]string "Recipe not found"
// @Security BearerAuth
// @Router /recipes/{id} [patch]
func (h *Handler) Patch(c *gin.Context) {
	h.update(c, false)
}

func (h *Handler) update(c *gin.Context, required bool) {
	userID, _ := auth.GetUserID(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid recipe ID"})
		return
	}

	var recipe models.Recipe
	if err := h.db.Where("id = ? AND user_id = ?", id, userID).First(&recipe).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Recipe not found"})
		return
	}

	in, errs := h.bindInput(c)
	h.validateInput(userID, in, recipe.ID, required, errs)

	var tags []models.Tag
	if in.Tags != nil {
		tags = h.resolveTags(userID, *in.Tags, errs)
	}
	var ingredients []models.Ingredient
	if in.Ingredients != nil {
		ingredients = h.resolveIngredients(userID, *in.Ingredients, errs)
	}

	imageExt := ""
	if in.Image != nil {
		ext, err := media.DetectImage(in.Image)
		if err != nil {
			errs.Add("image", "not a valid image")
		} else {
			imageExt = ext
		}
	}

	if errs.Any() {
		c.JSON(http.StatusBadRequest, gin.H{"errors": errs})
		return
	}

	oldImage := ""
	if in.Image != nil {
		name, err := h.storage.SaveImage(in.Image, imageExt)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store image"})
			return
		}
		oldImage = recipe.Image
		recipe.Image = name
	}

	if in.Title != nil {
		recipe.Title = strings.TrimSpace(*in.Title)
	}
	if in.TimeMinutes != nil {
		recipe.TimeMinutes = *in.TimeMinutes
	}
	if in.Price != nil {
		recipe.Price = *in.Price
	}
	if in.Link != nil {
		recipe.Link = strings.TrimSpace(*in.Link)
	}

	txErr := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&recipe).Error; err != nil {
			return err
		}
		// A submitted list replaces the associations, even when empty.
		// An absent key leaves them alone.
		if in.Tags != nil {
			if err := tx.Model(&recipe).Association("Tags").Replace(tags); err != nil {
				return err
			}
		}
		if in.Ingredients != nil {
			if err := tx.Model(&recipe).Association("Ingredients").Replace(ingredients); err != nil {
				return err
			}
		}
		return nil
	})
	if txErr != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update recipe"})
		return
	}

	// The old file goes only after the update committed
	if oldImage != "" && oldImage != recipe.Image {
		_ = h.storage.Delete(oldImage)
	}

	var updated models.Recipe
	if err := h.db.Preload("Tags").Preload("Ingredients").First(&updated, recipe.ID).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch recipe"})
		return
	}

	c.JSON(http.StatusOK, h.recipeToResponse(updated))
}

// Delete deletes a recipe
// @Summary Delete a recipe
// @Description Delete one of the authenticated user's recipes along with its image file
// @Tags recipes
// @Param id path int true "Recipe ID"
// @Success 204 "Recipe deleted"
// @Failure 400 {object} map[string]string "Invalid ID"
// @Failure 404 {object} map[string]string "Recipe not found"
// @Security BearerAuth
// @Router /recipes/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid recipe ID"})
		return
	}

	var recipe models.Recipe
	if err := h.db.Where("id = ? AND user_id = ?", id, userID).First(&recipe).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Recipe not found"})
		return
	}

	txErr := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&recipe).Association("Tags").Clear(); err != nil {
			return err
		}
		if err := tx.Model(&recipe).Association("Ingredients").Clear(); err != nil {
			return err
		}
		return tx.Delete(&recipe).Error
	})
	if txErr != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete recipe"})
		return
	}

	// The file goes only after the row is gone
	if recipe.Image != "" {
		_ = h.storage.Delete(recipe.Image)
	}

	c.Status(http.StatusNoContent)
}

// RegisterRoutes registers recipe routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	recipes := rg.Group("/recipes")
	{
		recipes.GET("", h.List)
		recipes.POST("", h.Create)
		recipes.GET("/:id", h.Get)
		recipes.PUT("/:id", h.Update)
		recipes.PATCH("/:id", h.Patch)
		recipes.DELETE("/:id", h.Delete)
	}
}
