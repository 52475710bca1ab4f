package names

var Fruits = []string{
	"apple",
	"apricot",
	"avocado",
	"banana",
	"blackberry",
	"blueberry",
	"boysenberry",
	"cantaloupe",
	"cherry",
	"clementine",
	"coconut",
	"cranberry",
	"currant",
	"date",
	"dragonfruit",
	"durian",
	"elderberry",
	"feijoa",
	"fig",
	"gooseberry",
	"grape",
	"grapefruit",
	"guava",
	"honeydew",
	"huckleberry",
	"jackfruit",
	"jujube",
	"kiwi",
	"kumquat",
	"lemon",
	"lime",
	"longan",
	"loquat",
	"lychee",
	"mandarin",
	"mango",
	"mangosteen",
	"melon",
	"mulberry",
	"nectarine",
	"olive",
	"orange",
	"papaya",
	"passionfruit",
	"peach",
	"pear",
	"persimmon",
	"pineapple",
	"plum",
	"pomegranate",
	"pomelo",
	"quince",
	"rambutan",
	"raspberry",
	"redcurrant",
	"satsuma",
	"starfruit",
	"strawberry",
	"tangerine",
	"watermelon",
}
