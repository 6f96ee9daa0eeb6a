package seed

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/seiixin/gunwadex/internal/comments"
	"github.com/seiixin/gunwadex/internal/content"
	"github.com/seiixin/gunwadex/internal/database"
	"github.com/seiixin/gunwadex/internal/engagement"
	"github.com/seiixin/gunwadex/internal/logger"
	"github.com/seiixin/gunwadex/internal/models"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultPassword is set on every seeded account
const DefaultPassword = "password123"

// Counts sizes a seeding run
type Counts struct {
	Users            int
	Stories          int
	EpisodesPerStory int
	Articles         int
	Comments         int
	Reactions        int
}

var (
	DevCounts  = Counts{Users: 50, Stories: 30, EpisodesPerStory: 6, Articles: 15, Comments: 300, Reactions: 600}
	TestCounts = Counts{Users: 0, Stories: 4, EpisodesPerStory: 2, Articles: 2, Comments: 10, Reactions: 10}
)

var categoryNames = []string{"Action", "Romance", "Fantasy", "Horror", "Comedy", "Slice of Life"}

// Seeder fills a database with plausible content through the regular
// services so counters and slugs stay consistent
type Seeder struct {
	db         *gorm.DB
	rng        *rand.Rand
	content    *content.Service
	comments   *comments.Service
	engagement *engagement.Service
}

// NewSeeder creates a seeder; the same seed produces the same data.
// indexer may be nil.
func NewSeeder(db *gorm.DB, seed int64, indexer content.Indexer) *Seeder {
	_ = gofakeit.Seed(seed)
	cs := comments.NewService(db)
	return &Seeder{
		db:         db,
		rng:        rand.New(rand.NewSource(seed)),
		content:    content.NewService(db, cs, indexer),
		comments:   cs,
		engagement: engagement.NewService(db, nil),
	}
}

// Summary reports what a run created
type Summary struct {
	Users      int
	Categories int
	Stories    int
	Episodes   int
	Articles   int
	Comments   int
	Reactions  int
}

// SeedDev seeds a development database with realistic volumes
func (s *Seeder) SeedDev(ctx context.Context) (*Summary, error) {
	return s.Seed(ctx, DevCounts)
}

// SeedTest seeds the fixed accounts used by end-to-end tests plus a little content
func (s *Seeder) SeedTest(ctx context.Context) (*Summary, error) {
	return s.Seed(ctx, TestCounts)
}

type fixedUser struct {
	username    string
	displayName string
	role        models.Role
}

var fixedUsers = []fixedUser{
	{"admin", "Site Admin", models.RoleAdmin},
	{"alice", "Alice Smith", models.RoleAuthor},
	{"bob", "Bob Johnson", models.RoleAuthor},
	{"charlie", "Charlie Brown", models.RoleUser},
	{"diana", "Diana Prince", models.RoleUser},
}

// Seed creates the fixed accounts, then random users and content
func (s *Seeder) Seed(ctx context.Context, counts Counts) (*Summary, error) {
	sum := &Summary{}
	log := func(msg string) { logger.Log.Info(msg) }

	log("Creating users...")
	users, err := s.seedUsers(ctx, counts.Users)
	if err != nil {
		return nil, fmt.Errorf("failed to seed users: %w", err)
	}
	sum.Users = len(users)

	var authors []models.User
	for _, u := range users {
		if u.Role == models.RoleAuthor || u.Role == models.RoleAdmin {
			authors = append(authors, u)
		}
	}

	log("Creating categories...")
	cats, err := s.seedCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to seed categories: %w", err)
	}
	sum.Categories = len(cats)

	log("Creating stories and episodes...")
	stories, episodes, err := s.seedStories(ctx, authors, cats, counts)
	if err != nil {
		return nil, fmt.Errorf("failed to seed stories: %w", err)
	}
	sum.Stories, sum.Episodes = len(stories), episodes

	log("Creating articles...")
	articles, err := s.seedArticles(ctx, authors, counts.Articles)
	if err != nil {
		return nil, fmt.Errorf("failed to seed articles: %w", err)
	}
	sum.Articles = len(articles)

	var targets []models.TargetRef
	for _, st := range stories {
		if st.Status == models.StatusPublished {
			targets = append(targets, models.TargetRef{Kind: models.TargetStory, ID: st.ID})
		}
	}
	for _, a := range articles {
		if a.Status == models.StatusPublished {
			targets = append(targets, models.TargetRef{Kind: models.TargetArticle, ID: a.ID})
		}
	}

	log("Creating comments...")
	if sum.Comments, err = s.seedComments(ctx, users, targets, counts.Comments); err != nil {
		return nil, fmt.Errorf("failed to seed comments: %w", err)
	}

	log("Creating reactions, favorites and ratings...")
	if sum.Reactions, err = s.seedEngagement(ctx, users, targets, counts.Reactions); err != nil {
		return nil, fmt.Errorf("failed to seed engagement: %w", err)
	}

	logger.Log.Info("Seeding finished",
		zap.Int("users", sum.Users),
		zap.Int("stories", sum.Stories),
		zap.Int("episodes", sum.Episodes),
		zap.Int("articles", sum.Articles),
		zap.Int("comments", sum.Comments),
		zap.Int("reactions", sum.Reactions),
	)
	return sum, nil
}

// Clean removes every row from every table (use with caution!)
func (s *Seeder) Clean(ctx context.Context) error {
	tables := database.Models()
	db := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Unscoped()
	for i := len(tables) - 1; i >= 0; i-- {
		if err := db.Delete(tables[i]).Error; err != nil {
			return fmt.Errorf("failed to clean %T: %w", tables[i], err)
		}
	}
	return nil
}

func (s *Seeder) seedUsers(ctx context.Context, count int) ([]models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	db := s.db.WithContext(ctx)

	users := make([]models.User, 0, len(fixedUsers)+count)
	for _, spec := range fixedUsers {
		var user models.User
		if err := db.Where("username = ?", spec.username).First(&user).Error; err == nil {
			users = append(users, user)
			continue
		}
		user = models.User{
			Email:        spec.username + "@example.com",
			Username:     spec.username,
			DisplayName:  spec.displayName,
			PasswordHash: string(hash),
			Role:         spec.role,
			AvatarURL:    avatarURL(spec.username),
		}
		if err := db.Create(&user).Error; err != nil {
			return nil, fmt.Errorf("failed to create user %s: %w", spec.username, err)
		}
		users = append(users, user)
	}

	for i := 0; i < count; i++ {
		username := fmt.Sprintf("%s%d", strings.ToLower(gofakeit.Username()), s.rng.Intn(100000))
		role := models.RoleUser
		if s.rng.Intn(5) == 0 {
			role = models.RoleAuthor
		}
		user := models.User{
			Email:        username + "@example.com",
			Username:     username,
			DisplayName:  gofakeit.Name(),
			Bio:          gofakeit.HipsterSentence(),
			PasswordHash: string(hash),
			Role:         role,
			AvatarURL:    avatarURL(username),
		}
		if err := db.Create(&user).Error; err != nil {
			logger.Log.Warn("Skipping seeded user", zap.String("username", username), zap.Error(err))
			continue
		}
		users = append(users, user)
	}
	return users, nil
}

func (s *Seeder) seedCategories(ctx context.Context) ([]models.Category, error) {
	cats := make([]models.Category, 0, len(categoryNames))
	for _, name := range categoryNames {
		var existing models.Category
		if err := s.db.WithContext(ctx).Where("name = ?", name).First(&existing).Error; err == nil {
			cats = append(cats, existing)
			continue
		}
		cat, err := s.content.CreateCategory(ctx, content.CategoryInput{Name: name, Description: gofakeit.HipsterSentence()})
		if err != nil {
			return nil, err
		}
		cats = append(cats, *cat)
	}
	return cats, nil
}

func (s *Seeder) status() string {
	if s.rng.Intn(10) == 0 {
		return string(models.StatusDraft)
	}
	return string(models.StatusPublished)
}

func (s *Seeder) seedStories(ctx context.Context, authors []models.User, cats []models.Category, counts Counts) ([]models.Story, int, error) {
	stories := make([]models.Story, 0, counts.Stories)
	episodes := 0
	for i := 0; i < counts.Stories; i++ {
		author := authors[s.rng.Intn(len(authors))]
		catID := cats[s.rng.Intn(len(cats))].ID
		story, err := s.content.CreateStory(ctx, author.ID, content.StoryInput{
			Title:      titleCase(gofakeit.Word() + " " + gofakeit.Word()),
			Synopsis:   paragraph(3),
			CoverURL:   fmt.Sprintf("https://picsum.photos/seed/%s/600/900", gofakeit.UUID()),
			CategoryID: &catID,
			Status:     s.status(),
		})
		if err != nil {
			return nil, 0, err
		}
		stories = append(stories, *story)

		for n := 1; n <= counts.EpisodesPerStory; n++ {
			assets := make([]content.AssetInput, 3+s.rng.Intn(6))
			for p := range assets {
				assets[p] = content.AssetInput{
					URL:    fmt.Sprintf("https://picsum.photos/seed/%s/800/1200", gofakeit.UUID()),
					Kind:   models.AssetImage,
					Width:  800,
					Height: 1200,
				}
			}
			if _, err := s.content.CreateEpisode(ctx, story.ID, content.EpisodeInput{
				Number: n,
				Title:  fmt.Sprintf("Episode %d: %s", n, titleCase(gofakeit.Word())),
				Notes:  gofakeit.HipsterSentence(),
				Status: s.status(),
				Assets: &assets,
			}); err != nil {
				return nil, 0, err
			}
			episodes++
		}
	}
	return stories, episodes, nil
}

func (s *Seeder) seedArticles(ctx context.Context, authors []models.User, count int) ([]models.Article, error) {
	articles := make([]models.Article, 0, count)
	for i := 0; i < count; i++ {
		author := authors[s.rng.Intn(len(authors))]
		a, err := s.content.CreateArticle(ctx, author.ID, content.ArticleInput{
			Title:   titleCase(gofakeit.HipsterSentence()),
			Excerpt: gofakeit.HipsterSentence(),
			Body:    paragraph(12),
			Status:  s.status(),
		})
		if err != nil {
			return nil, err
		}
		articles = append(articles, *a)
	}
	return articles, nil
}

func (s *Seeder) seedComments(ctx context.Context, users []models.User, targets []models.TargetRef, count int) (int, error) {
	if len(targets) == 0 {
		return 0, nil
	}
	var created []*models.Comment
	for i := 0; i < count; i++ {
		in := comments.CreateInput{
			Target: targets[s.rng.Intn(len(targets))],
			Body:   gofakeit.HipsterSentence(),
		}
		// a third of comments reply to an earlier one
		if len(created) > 0 && s.rng.Intn(3) == 0 {
			parent := created[s.rng.Intn(len(created))]
			in.Target = parent.Target()
			in.ParentID = parent.ID
		}
		c, err := s.comments.Create(ctx, users[s.rng.Intn(len(users))].ID, in)
		if err != nil {
			return len(created), err
		}
		created = append(created, c)
	}
	return len(created), nil
}

func (s *Seeder) seedEngagement(ctx context.Context, users []models.User, targets []models.TargetRef, count int) (int, error) {
	if len(targets) == 0 {
		return 0, nil
	}
	n := 0
	for i := 0; i < count; i++ {
		user := users[s.rng.Intn(len(users))]
		target := targets[s.rng.Intn(len(targets))]

		var err error
		switch s.rng.Intn(3) {
		case 0:
			_, err = s.engagement.ToggleReaction(ctx, user.ID, target)
		case 1:
			_, err = s.engagement.ToggleFavorite(ctx, user.ID, target)
		default:
			if target.Kind != models.TargetStory {
				continue
			}
			_, err = s.engagement.Rate(ctx, user.ID, target.ID, 1+s.rng.Intn(5))
		}
		if err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func avatarURL(seed string) string {
	return fmt.Sprintf("https://api.dicebear.com/7.x/avataaars/png?seed=%s", seed)
}

func paragraph(sentences int) string {
	parts := make([]string, sentences)
	for i := range parts {
		parts[i] = gofakeit.HipsterSentence()
	}
	return strings.Join(parts, " ")
}

func titleCase(s string) string {
	s = strings.TrimRight(s, ".")
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
